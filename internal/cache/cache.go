package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spacesedan/trendlens/internal/models"
)

const (
	ProfileEmbeddingTTL = 24 * time.Hour
	ContentEmbeddingTTL = 24 * time.Hour
	RecommendationTTL   = time.Hour

	TrendingKey = "trending:tags"
)

// Store is a string key/value cache with per-key expiry.
type Store interface {
	// Get returns ok=false on a miss; err is reserved for transport failures.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

func ProfileEmbeddingKey(userID string) string {
	return "embedding:user:" + userID
}

func ContentEmbeddingKey(contentID string) string {
	return "embedding:content:" + contentID
}

// RecommendationKey expects a normalized query.
func RecommendationKey(userID string, q models.RecommendationQuery) string {
	return fmt.Sprintf("recs:%s:%s:%s:%d:%s",
		userID, q.Source, q.Type, q.TopK, strconv.FormatBool(q.Discover))
}

// InvalidateProfile drops a user's cached profile vector. Cached result lists
// are left to expire.
func InvalidateProfile(ctx context.Context, s Store, userID string) error {
	return s.Delete(ctx, ProfileEmbeddingKey(userID))
}

// GetJSON decodes the cached value at key into out. A value that no longer
// decodes is reported as a miss.
func GetJSON(ctx context.Context, s Store, key string, out any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, nil
	}
	return true, nil
}

func SetJSON(ctx context.Context, s Store, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value for %s: %w", key, err)
	}
	return s.Set(ctx, key, string(payload), ttl)
}
