package models

import (
	"strings"
	"time"
)

// ContentItem is a scraped piece of content as stored in the content store.
// The ranking code only ever reads it.
type ContentItem struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Source          string    `json:"source"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	Tags            []string  `json:"tags"`
	EngagementScore float64   `json:"engagement_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// EmbeddingText is the text the indexer embeds for an item.
func (c ContentItem) EmbeddingText() string {
	text := c.Title
	if len(c.Tags) > 0 {
		text += "\nTags: " + strings.Join(c.Tags, ", ")
	}
	return text
}

// TimeRange bounds a content query by creation time. From is inclusive, To is
// exclusive; a nil bound is open.
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && !t.Before(*r.To) {
		return false
	}
	return true
}

// TagEngagementSample is one tag's aggregate over a single query window.
type TagEngagementSample struct {
	Tag             string
	Engagement      float64
	AverageAgeHours float64
}
