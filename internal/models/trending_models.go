package models

import "time"

const TrendingCategoryTag = "tag"

type TrendingEntry struct {
	Tag      string  `json:"tag" dynamodbav:"tag"`
	Mentions float64 `json:"mentions" dynamodbav:"mentions"`
	Growth   int64   `json:"growth" dynamodbav:"growth"`
	Score    float64 `json:"score" dynamodbav:"score"`
	Category string  `json:"category" dynamodbav:"category"`
}

// TrendingSnapshot is one scheduled run's output, as cached and published.
type TrendingSnapshot struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Entries     []TrendingEntry `json:"entries"`
}
