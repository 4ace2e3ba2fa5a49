package cache

import (
	"context"
	"testing"
	"time"

	"github.com/spacesedan/trendlens/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore map[string]string

func (m mapStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m mapStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m[key] = value
	return nil
}

func (m mapStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m, k)
	}
	return nil
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "embedding:user:u1", ProfileEmbeddingKey("u1"))
	assert.Equal(t, "embedding:content:gh-1", ContentEmbeddingKey("gh-1"))

	q := models.RecommendationQuery{Source: "GitHub", TopK: 5, Discover: true}.Normalize()
	assert.Equal(t, "recs:u1:github:all:5:true", RecommendationKey("u1", q))
}

func TestRecommendationKeyDistinguishesParameters(t *testing.T) {
	base := models.RecommendationQuery{}.Normalize()
	discover := base
	discover.Discover = true
	other := base
	other.TopK = 11

	assert.NotEqual(t, RecommendationKey("u1", base), RecommendationKey("u1", discover))
	assert.NotEqual(t, RecommendationKey("u1", base), RecommendationKey("u1", other))
	assert.NotEqual(t, RecommendationKey("u1", base), RecommendationKey("u2", base))
}

func TestJSONHelpers(t *testing.T) {
	store := mapStore{}
	ctx := context.Background()

	in := models.CachedEmbedding{Vector: models.EmbeddingVector{0.25, -1}, Model: "m"}
	require.NoError(t, SetJSON(ctx, store, "k", in, time.Hour))

	var out models.CachedEmbedding
	ok, err := GetJSON(ctx, store, "k", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in.Vector, out.Vector)

	ok, err = GetJSON(ctx, store, "missing", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetJSONUndecodableIsMiss(t *testing.T) {
	store := mapStore{"k": "{not json"}

	var out []models.RecommendationMatch
	ok, err := GetJSON(context.Background(), store, "k", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}
