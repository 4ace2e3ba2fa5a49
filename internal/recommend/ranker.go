package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/trendlens/internal/cache"
	"github.com/spacesedan/trendlens/internal/models"
)

// ErrNoPreferences is returned when the user has no stored preferences. It
// wraps models.ErrNotFound.
var ErrNoPreferences = fmt.Errorf("no preferences found: %w", models.ErrNotFound)

type PreferencesStore interface {
	GetUserPreferences(ctx context.Context, userID string) (models.UserPreferences, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) (models.EmbeddingVector, error)
	Model() string
}

type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

type VectorIndex interface {
	KNNSearch(ctx context.Context, q models.VectorQuery) ([]models.VectorMatch, error)
}

type Options struct {
	// EnrichProfiles runs the template sentence through the summarizer
	// before embedding.
	EnrichProfiles      bool
	ProfileEmbeddingTTL time.Duration
	ResultTTL           time.Duration
	DiscoveryThreshold  int
	OverlapBonus        float64
}

func DefaultOptions() Options {
	return Options{
		EnrichProfiles:      true,
		ProfileEmbeddingTTL: cache.ProfileEmbeddingTTL,
		ResultTTL:           cache.RecommendationTTL,
		DiscoveryThreshold:  40,
		OverlapBonus:        0.01,
	}
}

// Ranker produces personalized recommendations. It holds no per-user state;
// profile vectors and result lists live in the cache.
type Ranker struct {
	prefs      PreferencesStore
	embedder   Embedder
	summarizer Summarizer
	index      VectorIndex
	cache      cache.Store
	opts       Options
	now        func() time.Time
}

// NewRanker wires the ranker. summarizer may be nil, which disables
// enrichment.
func NewRanker(prefs PreferencesStore, embedder Embedder, summarizer Summarizer, index VectorIndex, store cache.Store, opts Options) *Ranker {
	if !opts.EnrichProfiles {
		summarizer = nil
	}
	return &Ranker{
		prefs:      prefs,
		embedder:   embedder,
		summarizer: summarizer,
		index:      index,
		cache:      store,
		opts:       opts,
		now:        time.Now,
	}
}

// Recommend returns up to q.TopK matches for userID. A cached list for the
// same parameters is returned as is.
func (r *Ranker) Recommend(ctx context.Context, userID string, q models.RecommendationQuery) ([]models.RecommendationMatch, error) {
	q = q.Normalize()
	start := time.Now()

	prefs, err := r.prefs.GetUserPreferences(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("[Ranker] user %s: %w", userID, ErrNoPreferences)
		}
		return nil, fmt.Errorf("[Ranker] failed to load preferences: %w", err)
	}

	key := cache.RecommendationKey(userID, q)
	var cached []models.RecommendationMatch
	hit, err := cache.GetJSON(ctx, r.cache, key, &cached)
	if err != nil {
		slog.Warn("[Ranker] Result cache read failed, recomputing",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
	if hit {
		slog.Debug("[Ranker] Result cache hit", slog.String("key", key))
		return cached, nil
	}

	vector, err := r.profileEmbedding(ctx, prefs)
	if err != nil {
		return nil, err
	}

	matches, err := r.index.KNNSearch(ctx, models.VectorQuery{
		Vector:          vector,
		TopK:            q.TopK,
		IncludeMetadata: true,
		Filter:          BuildFilter(q),
	})
	if err != nil {
		return nil, fmt.Errorf("[Ranker] similarity query failed: %w", err)
	}

	ranked := Rerank(matches, prefs.Interests, r.opts.OverlapBonus)
	if q.Discover {
		ranked = ApplyDiscovery(ranked, r.opts.DiscoveryThreshold)
	}
	ranked = SortAndTruncate(ranked, q.TopK)

	if err := cache.SetJSON(ctx, r.cache, key, ranked, r.opts.ResultTTL); err != nil {
		slog.Warn("[Ranker] Failed to cache recommendations",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}

	slog.Info("[Ranker] Generated recommendations",
		slog.String("user_id", userID),
		slog.Int("matches", len(matches)),
		slog.Int("returned", len(ranked)),
		slog.Bool("discover", q.Discover),
		slog.Duration("elapsed", time.Since(start)))
	return ranked, nil
}

// profileEmbedding returns the cached profile vector when it was produced by
// the current embedding model, otherwise builds, embeds and caches it.
func (r *Ranker) profileEmbedding(ctx context.Context, prefs models.UserPreferences) (models.EmbeddingVector, error) {
	key := cache.ProfileEmbeddingKey(prefs.UserID)
	model := r.embedder.Model()

	var cached models.CachedEmbedding
	hit, err := cache.GetJSON(ctx, r.cache, key, &cached)
	if err != nil {
		slog.Warn("[Ranker] Profile embedding cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
	if hit && cached.Model == model && len(cached.Vector) > 0 {
		return cached.Vector, nil
	}

	text := EnrichProfile(ctx, r.summarizer, prefs)
	logProfileText(prefs.UserID, text)

	vector, err := r.embedder.Embed(ctx, text.Text)
	if err != nil {
		return nil, fmt.Errorf("[Ranker] failed to embed profile for user %s: %w", prefs.UserID, err)
	}

	envelope := models.CachedEmbedding{
		Vector:    vector,
		Model:     model,
		Enriched:  text.Enriched,
		CreatedAt: r.now().UTC(),
	}
	if err := cache.SetJSON(ctx, r.cache, key, envelope, r.opts.ProfileEmbeddingTTL); err != nil {
		slog.Warn("[Ranker] Failed to cache profile embedding",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
	return vector, nil
}

// InvalidateProfile drops the cached profile vector so the next request
// rebuilds it from fresh preferences.
func (r *Ranker) InvalidateProfile(ctx context.Context, userID string) error {
	if err := cache.InvalidateProfile(ctx, r.cache, userID); err != nil {
		return fmt.Errorf("[Ranker] failed to invalidate profile embedding: %w", err)
	}
	return nil
}
