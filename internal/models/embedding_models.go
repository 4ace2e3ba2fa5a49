package models

import "time"

type EmbeddingVector []float32

// CachedEmbedding is the cache envelope for a profile or content vector.
// Model is recorded so vectors from a different embedding model are never
// compared against each other.
type CachedEmbedding struct {
	Vector    EmbeddingVector `json:"vector"`
	Model     string          `json:"model"`
	Enriched  bool            `json:"enriched,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
