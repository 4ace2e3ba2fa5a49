package models

type UserPreferences struct {
	UserID       string   `json:"user_id" dynamodbav:"user_id"`
	Interests    []string `json:"interests" dynamodbav:"interests"`
	Sources      []string `json:"sources" dynamodbav:"sources"`
	ContentTypes []string `json:"content_types" dynamodbav:"content_types"`
}
