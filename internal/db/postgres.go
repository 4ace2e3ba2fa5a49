package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spacesedan/trendlens/internal/clients"
	"github.com/spacesedan/trendlens/internal/models"
)

// Each tag is counted once per item, so an item tagged ["go", "go"] adds its
// engagement to "go" a single time.
const tagEngagementQuery = `
	SELECT t.tag,
	       COALESCE(SUM(c.engagement_score), 0)::float8 AS engagement,
	       AVG(EXTRACT(EPOCH FROM ($1::timestamptz - c.created_at)) / 3600.0)::float8 AS avg_age_hours
	FROM content_items c
	CROSS JOIN LATERAL (SELECT DISTINCT unnest(c.tags) AS tag) t
	WHERE t.tag <> ''
	  AND ($2::timestamptz IS NULL OR c.created_at >= $2)
	  AND ($3::timestamptz IS NULL OR c.created_at < $3)
	GROUP BY t.tag
`

const recentContentQuery = `
	SELECT id, type, source, title, url, COALESCE(tags, '{}'), COALESCE(engagement_score, 0), created_at
	FROM content_items
	WHERE created_at >= $1
	ORDER BY created_at DESC
	LIMIT $2
`

// ContentStore reads the scraped content table.
type ContentStore struct {
	pool *pgxpool.Pool
}

func NewContentStore(pg clients.Postgres) *ContentStore {
	return &ContentStore{pool: pg.DB}
}

func tagEngagementArgs(r models.TimeRange, now time.Time) []any {
	return []any{now.UTC(), utcOrNil(r.From), utcOrNil(r.To)}
}

func utcOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// TagEngagement sums engagement and averages item age (hours before now) per
// tag over content created inside r.
func (s *ContentStore) TagEngagement(ctx context.Context, r models.TimeRange, now time.Time) ([]models.TagEngagementSample, error) {
	start := time.Now()

	rows, err := s.pool.Query(ctx, tagEngagementQuery, tagEngagementArgs(r, now)...)
	if err != nil {
		return nil, models.Upstream("content store tag engagement", err)
	}

	samples, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TagEngagementSample, error) {
		var sample models.TagEngagementSample
		err := row.Scan(&sample.Tag, &sample.Engagement, &sample.AverageAgeHours)
		return sample, err
	})
	if err != nil {
		return nil, models.Upstream("content store tag engagement", err)
	}

	slog.Debug("[DB] Tag engagement query complete",
		slog.Int("tags", len(samples)),
		slog.Duration("elapsed", time.Since(start)))
	return samples, nil
}

// RecentContent lists up to limit items created at or after since, newest
// first.
func (s *ContentStore) RecentContent(ctx context.Context, since time.Time, limit int) ([]models.ContentItem, error) {
	rows, err := s.pool.Query(ctx, recentContentQuery, since.UTC(), limit)
	if err != nil {
		return nil, models.Upstream("content store recent content", err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ContentItem, error) {
		var item models.ContentItem
		err := row.Scan(&item.ID, &item.Type, &item.Source, &item.Title, &item.URL,
			&item.Tags, &item.EngagementScore, &item.CreatedAt)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("[DB] failed to scan recent content: %w", models.Upstream("content store recent content", err))
	}

	slog.Info("[DB] Loaded recent content",
		slog.Int("count", len(items)),
		slog.Time("since", since))
	return items, nil
}
