package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spacesedan/trendlens/internal/cache"
	"github.com/spacesedan/trendlens/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPrefs = fakePrefs{
	"u1": {
		UserID:       "u1",
		Interests:    []string{"ai", "rust"},
		Sources:      []string{"github"},
		ContentTypes: []string{"githubrepo"},
	},
}

type rankerFixture struct {
	cache      *memoryCache
	embedder   *fakeEmbedder
	summarizer *fakeSummarizer
	index      *fakeIndex
	ranker     *Ranker
}

func newFixture(matches ...models.VectorMatch) *rankerFixture {
	f := &rankerFixture{
		cache:      newMemoryCache(),
		embedder:   &fakeEmbedder{model: "text-embedding-3-small"},
		summarizer: &fakeSummarizer{out: "Someone who follows **applied AI** and Rust systems work."},
		index:      &fakeIndex{matches: matches},
	}
	f.ranker = NewRanker(testPrefs, f.embedder, f.summarizer, f.index, f.cache, DefaultOptions())
	return f
}

func TestRecommendScoresAndCaches(t *testing.T) {
	f := newFixture(
		match("py", 0.81, "ai", "python"),
		match("low", 0.30, "cooking"),
	)
	q := models.RecommendationQuery{Source: "GitHub", Type: "all", TopK: 5}

	out, err := f.ranker.Recommend(context.Background(), "u1", q)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "py", out[0].ID)
	assert.Equal(t, 82, out[0].RelevanceScore)

	require.Len(t, f.index.queries, 1)
	query := f.index.queries[0]
	assert.Equal(t, 5, query.TopK)
	assert.True(t, query.IncludeMetadata)
	assert.Equal(t, map[string]string{"source": "github"}, query.Filter)

	key := cache.RecommendationKey("u1", q.Normalize())
	assert.Equal(t, "recs:u1:github:all:5:false", key)
	assert.Equal(t, time.Hour, f.cache.ttls[key])
	assert.Equal(t, 24*time.Hour, f.cache.ttls[cache.ProfileEmbeddingKey("u1")])
}

func TestRecommendSecondCallIsServedFromCache(t *testing.T) {
	f := newFixture(match("a", 0.7, "rust"), match("b", 0.6, "ai"), match("c", 0.2))
	q := models.RecommendationQuery{TopK: 3}
	ctx := context.Background()

	first, err := f.ranker.Recommend(ctx, "u1", q)
	require.NoError(t, err)
	second, err := f.ranker.Recommend(ctx, "u1", q)
	require.NoError(t, err)

	assert.Len(t, f.index.queries, 1, "cache hit must not query the vector index")
	assert.Len(t, f.embedder.texts, 1)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}

func TestRecommendDiscoveryExcludesConfidentMatches(t *testing.T) {
	f := newFixture(
		match("py", 0.81, "ai", "python"),
		match("mid", 0.45),
		match("odd", 0.31, "knitting"),
		match("far", 0.12),
	)

	out, err := f.ranker.Recommend(context.Background(), "u1",
		models.RecommendationQuery{Source: "github", Type: "githubrepo", TopK: 10, Discover: true})
	require.NoError(t, err)

	ids := make([]string, 0, len(out))
	for _, m := range out {
		assert.Less(t, m.RelevanceScore, 40)
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"odd", "far"}, ids)
	assert.Equal(t, map[string]string{"type": "githubrepo"}, f.index.queries[0].Filter)
}

func TestRecommendDiscoveryIsDisjointFromConfidentResults(t *testing.T) {
	matches := []models.VectorMatch{
		match("a", 0.91, "rust"), match("b", 0.77), match("c", 0.41),
		match("d", 0.38, "ai"), match("e", 0.15),
	}
	normal, err := newFixture(matches...).ranker.Recommend(context.Background(), "u1",
		models.RecommendationQuery{TopK: 5})
	require.NoError(t, err)
	discover, err := newFixture(matches...).ranker.Recommend(context.Background(), "u1",
		models.RecommendationQuery{TopK: 5, Discover: true})
	require.NoError(t, err)

	confident := map[string]bool{}
	for _, m := range normal {
		if m.RelevanceScore >= 40 {
			confident[m.ID] = true
		}
	}
	require.NotEmpty(t, confident)
	for _, m := range discover {
		assert.False(t, confident[m.ID], "discovery returned confident match %s", m.ID)
	}
}

func TestRecommendNeverExceedsTopK(t *testing.T) {
	var matches []models.VectorMatch
	for i := 0; i < 30; i++ {
		matches = append(matches, match(fmt.Sprintf("m%d", i), float64(i)/30))
	}

	for _, topK := range []int{1, 3, 10, 25} {
		f := newFixture(matches...)
		out, err := f.ranker.Recommend(context.Background(), "u1", models.RecommendationQuery{TopK: topK})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(out), topK)
	}
}

func TestRecommendWithoutPreferences(t *testing.T) {
	f := newFixture(match("a", 0.9))

	_, err := f.ranker.Recommend(context.Background(), "ghost", models.RecommendationQuery{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPreferences)
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.Zero(t, f.cache.sets, "no cache write for a user without preferences")
	assert.Empty(t, f.embedder.texts)
	assert.Empty(t, f.index.queries)
}

func TestRecommendEmbeddingFailure(t *testing.T) {
	f := newFixture(match("a", 0.9))
	f.embedder.err = models.Upstream("embedding", errUpstream)

	_, err := f.ranker.Recommend(context.Background(), "u1", models.RecommendationQuery{})
	require.Error(t, err)

	var upstream *models.UpstreamError
	assert.ErrorAs(t, err, &upstream)
	assert.Empty(t, f.index.queries)
	assert.Zero(t, f.cache.sets)
}

func TestRecommendMissingEmbeddingKey(t *testing.T) {
	f := newFixture()
	f.embedder.err = fmt.Errorf("no key: %w", models.ErrConfiguration)

	_, err := f.ranker.Recommend(context.Background(), "u1", models.RecommendationQuery{})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestRecommendVectorIndexFailure(t *testing.T) {
	f := newFixture()
	f.index.err = models.Upstream("opensearch knn search", errUpstream)

	_, err := f.ranker.Recommend(context.Background(), "u1", models.RecommendationQuery{})
	assert.ErrorIs(t, err, errUpstream)
	_, cachedList := f.cache.values[cache.RecommendationKey("u1", models.RecommendationQuery{}.Normalize())]
	assert.False(t, cachedList)
}

func TestRecommendEmptyResultIsCached(t *testing.T) {
	f := newFixture()
	q := models.RecommendationQuery{Type: "producthunt"}
	ctx := context.Background()

	out, err := f.ranker.Recommend(ctx, "u1", q)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)

	assert.Equal(t, "[]", f.cache.values[cache.RecommendationKey("u1", q.Normalize())])

	_, err = f.ranker.Recommend(ctx, "u1", q)
	require.NoError(t, err)
	assert.Len(t, f.index.queries, 1)
}

func TestRecommendPrefersCachedResultOverFailingUpstream(t *testing.T) {
	f := newFixture(match("a", 0.9))
	ctx := context.Background()

	first, err := f.ranker.Recommend(ctx, "u1", models.RecommendationQuery{})
	require.NoError(t, err)

	f.embedder.err = errUpstream
	f.index.err = errUpstream
	require.NoError(t, f.cache.Delete(ctx, cache.ProfileEmbeddingKey("u1")))

	second, err := f.ranker.Recommend(ctx, "u1", models.RecommendationQuery{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRecommendCacheReadFailureRecomputes(t *testing.T) {
	f := newFixture(match("a", 0.9))
	f.cache.readErr = errors.New("valkey down")

	out, err := f.ranker.Recommend(context.Background(), "u1", models.RecommendationQuery{})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestProfileEmbeddingIsReused(t *testing.T) {
	f := newFixture(match("a", 0.9))
	ctx := context.Background()

	_, err := f.ranker.Recommend(ctx, "u1", models.RecommendationQuery{TopK: 1})
	require.NoError(t, err)
	_, err = f.ranker.Recommend(ctx, "u1", models.RecommendationQuery{TopK: 2})
	require.NoError(t, err)

	assert.Len(t, f.embedder.texts, 1)
	assert.Equal(t, 1, f.summarizer.calls)
	assert.Len(t, f.index.queries, 2)

	var envelope models.CachedEmbedding
	require.NoError(t, json.Unmarshal([]byte(f.cache.values[cache.ProfileEmbeddingKey("u1")]), &envelope))
	assert.True(t, envelope.Enriched)
	assert.Equal(t, "text-embedding-3-small", envelope.Model)
}

func TestProfileEmbeddingFromOtherModelIsRebuilt(t *testing.T) {
	f := newFixture(match("a", 0.9))
	ctx := context.Background()

	require.NoError(t, cache.SetJSON(ctx, f.cache, cache.ProfileEmbeddingKey("u1"), models.CachedEmbedding{
		Vector: models.EmbeddingVector{1, 1},
		Model:  "text-embedding-ada-002",
	}, time.Hour))

	_, err := f.ranker.Recommend(ctx, "u1", models.RecommendationQuery{})
	require.NoError(t, err)
	assert.Len(t, f.embedder.texts, 1)
	assert.Equal(t, models.EmbeddingVector{0.1, 0.2, 0.3}, f.index.queries[0].Vector)
}

func TestEnrichmentFailureFallsBackToTemplate(t *testing.T) {
	f := newFixture(match("a", 0.9))
	f.summarizer.err = errors.New("rate limited")

	_, err := f.ranker.Recommend(context.Background(), "u1", models.RecommendationQuery{})
	require.NoError(t, err)

	require.Len(t, f.embedder.texts, 1)
	assert.Equal(t, BuildProfileText(testPrefs["u1"]), f.embedder.texts[0])
}

func TestEnrichedTextIsCleanedBeforeEmbedding(t *testing.T) {
	f := newFixture(match("a", 0.9))

	_, err := f.ranker.Recommend(context.Background(), "u1", models.RecommendationQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Someone who follows applied AI and Rust systems work."}, f.embedder.texts)
}

func TestEnrichmentDisabled(t *testing.T) {
	f := newFixture(match("a", 0.9))
	opts := DefaultOptions()
	opts.EnrichProfiles = false
	ranker := NewRanker(testPrefs, f.embedder, f.summarizer, f.index, f.cache, opts)

	_, err := ranker.Recommend(context.Background(), "u1", models.RecommendationQuery{})
	require.NoError(t, err)
	assert.Zero(t, f.summarizer.calls)
	assert.Equal(t, []string{BuildProfileText(testPrefs["u1"])}, f.embedder.texts)
}

func TestInvalidateProfile(t *testing.T) {
	f := newFixture(match("a", 0.9))
	ctx := context.Background()

	_, err := f.ranker.Recommend(ctx, "u1", models.RecommendationQuery{})
	require.NoError(t, err)
	require.Contains(t, f.cache.values, cache.ProfileEmbeddingKey("u1"))

	require.NoError(t, f.ranker.InvalidateProfile(ctx, "u1"))
	assert.NotContains(t, f.cache.values, cache.ProfileEmbeddingKey("u1"))
}
