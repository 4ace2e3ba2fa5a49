package models

import (
	"strings"
	"time"
)

const (
	FilterAll      = "all"
	DefaultTopK    = 10
	MaxTopK        = 100
	MetadataSource = "source"
	MetadataType   = "type"
	MetadataTags   = "tags"
	EmbeddingField = "embedding"
	CreatedAtField = "created_at"
)

// VectorMetadata is the typed view of a vector index record. Every field is
// optional in the index; NormalizeMetadata applies the defaults.
type VectorMetadata struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Source    string    `json:"source"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// NormalizeMetadata replaces missing fields with their empty defaults so
// downstream code never has to check for presence.
func NormalizeMetadata(m VectorMetadata) VectorMetadata {
	if m.Tags == nil {
		m.Tags = []string{}
	}
	return m
}

// VectorMatch is one raw hit from the vector index.
type VectorMatch struct {
	Metadata VectorMetadata
	Score    float64
}

type VectorQuery struct {
	Vector          EmbeddingVector
	TopK            int
	IncludeMetadata bool
	// Filter holds metadata equality constraints; nil means unfiltered.
	Filter map[string]string
}

type RecommendationQuery struct {
	Source   string `json:"source"`
	Type     string `json:"type"`
	TopK     int    `json:"top_k"`
	Discover bool   `json:"discover"`
}

// Normalize lowercases the filters, defaults empty ones to "all" and clamps
// TopK into [1, MaxTopK].
func (q RecommendationQuery) Normalize() RecommendationQuery {
	q.Source = normalizeFilter(q.Source)
	q.Type = normalizeFilter(q.Type)
	switch {
	case q.TopK <= 0:
		q.TopK = DefaultTopK
	case q.TopK > MaxTopK:
		q.TopK = MaxTopK
	}
	return q
}

func normalizeFilter(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return FilterAll
	}
	return v
}

type RecommendationMatch struct {
	VectorMetadata
	Similarity     float64 `json:"similarity"`
	RelevanceScore int     `json:"relevance_score"`
}

// ContentDocument is what the indexer writes to the vector index.
type ContentDocument struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	URL       string          `json:"url"`
	Source    string          `json:"source"`
	Tags      []string        `json:"tags"`
	CreatedAt time.Time       `json:"created_at"`
	Embedding EmbeddingVector `json:"embedding"`
}

func NewContentDocument(item ContentItem, vector EmbeddingVector) ContentDocument {
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	return ContentDocument{
		ID:        item.ID,
		Type:      strings.ToLower(item.Type),
		Title:     item.Title,
		URL:       item.URL,
		Source:    strings.ToLower(item.Source),
		Tags:      tags,
		CreatedAt: item.CreatedAt,
		Embedding: vector,
	}
}
