package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/trendlens/internal/cache"
	"github.com/spacesedan/trendlens/internal/models"
)

type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([]models.EmbeddingVector, error)
	Model() string
}

type DocumentIndex interface {
	IndexDocument(ctx context.Context, doc models.ContentDocument) error
}

type RecentContentSource interface {
	RecentContent(ctx context.Context, since time.Time, limit int) ([]models.ContentItem, error)
}

// Indexer embeds content items and writes them to the vector index.
type Indexer struct {
	embedder BatchEmbedder
	index    DocumentIndex
	cache    cache.Store
	ttl      time.Duration
	now      func() time.Time
}

func New(embedder BatchEmbedder, index DocumentIndex, store cache.Store) *Indexer {
	return &Indexer{
		embedder: embedder,
		index:    index,
		cache:    store,
		ttl:      cache.ContentEmbeddingTTL,
		now:      time.Now,
	}
}

// IndexBatch returns the IDs that made it into the vector index. Cached
// content vectors from the current model are reused; the rest are embedded
// in a single call. Per-document index failures are joined into err without
// stopping the batch.
func (ix *Indexer) IndexBatch(ctx context.Context, items []models.ContentItem) ([]string, error) {
	items = dedupe(items)
	if len(items) == 0 {
		return nil, nil
	}
	start := time.Now()
	model := ix.embedder.Model()

	vectors := make([]models.EmbeddingVector, len(items))
	var missing []int
	for i, item := range items {
		var cached models.CachedEmbedding
		hit, err := cache.GetJSON(ctx, ix.cache, cache.ContentEmbeddingKey(item.ID), &cached)
		if err != nil {
			slog.Warn("[Indexer] Content embedding cache read failed",
				slog.String("content_id", item.ID),
				slog.String("error", err.Error()))
		}
		if hit && cached.Model == model && len(cached.Vector) > 0 {
			vectors[i] = cached.Vector
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for j, i := range missing {
			texts[j] = items[i].EmbeddingText()
		}

		embedded, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("[Indexer] failed to embed %d items: %w", len(texts), err)
		}

		for j, i := range missing {
			vectors[i] = embedded[j]
			envelope := models.CachedEmbedding{Vector: embedded[j], Model: model, CreatedAt: ix.now().UTC()}
			if err := cache.SetJSON(ctx, ix.cache, cache.ContentEmbeddingKey(items[i].ID), envelope, ix.ttl); err != nil {
				slog.Warn("[Indexer] Failed to cache content embedding",
					slog.String("content_id", items[i].ID),
					slog.String("error", err.Error()))
			}
		}
	}

	indexed := make([]string, 0, len(items))
	var errs []error
	for i, item := range items {
		if err := ix.index.IndexDocument(ctx, models.NewContentDocument(item, vectors[i])); err != nil {
			errs = append(errs, fmt.Errorf("content %s: %w", item.ID, err))
			continue
		}
		indexed = append(indexed, item.ID)
	}

	slog.Info("[Indexer] Indexed content batch",
		slog.Int("items", len(items)),
		slog.Int("embedded", len(missing)),
		slog.Int("indexed", len(indexed)),
		slog.Int("failed", len(errs)),
		slog.Duration("elapsed", time.Since(start)))
	return indexed, errors.Join(errs...)
}

// dedupe keeps the last occurrence of each ID and drops items without one.
func dedupe(items []models.ContentItem) []models.ContentItem {
	pos := make(map[string]int, len(items))
	out := make([]models.ContentItem, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if i, ok := pos[item.ID]; ok {
			out[i] = item
			continue
		}
		pos[item.ID] = len(out)
		out = append(out, item)
	}
	return out
}

// Backfill re-indexes up to limit items created since the given time, in
// batches of batchSize.
func (ix *Indexer) Backfill(ctx context.Context, source RecentContentSource, since time.Time, limit, batchSize int) (int, error) {
	items, err := source.RecentContent(ctx, since, limit)
	if err != nil {
		return 0, fmt.Errorf("[Indexer] failed to load content for backfill: %w", err)
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	total := 0
	for i := 0; i < len(items); i += batchSize {
		end := min(i+batchSize, len(items))
		indexed, err := ix.IndexBatch(ctx, items[i:end])
		total += len(indexed)
		if err != nil {
			return total, err
		}
	}

	slog.Info("[Indexer] Backfill complete",
		slog.Int("loaded", len(items)),
		slog.Int("indexed", total))
	return total, nil
}
