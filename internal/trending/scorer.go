package trending

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/spacesedan/trendlens/internal/models"
	"golang.org/x/sync/errgroup"
)

// ContentStore aggregates engagement per individual tag over a creation-time
// range. Average age is measured in hours before now.
type ContentStore interface {
	TagEngagement(ctx context.Context, r models.TimeRange, now time.Time) ([]models.TagEngagementSample, error)
}

type Scorer struct {
	store ContentStore
	opts  Options
}

func NewScorer(store ContentStore, opts Options) *Scorer {
	return &Scorer{store: store, opts: opts.withDefaults()}
}

// Windows returns the current and previous ranges ending at now. The current
// window has no upper bound so items stamped slightly ahead of now still count.
func (s *Scorer) Windows(now time.Time) (current, previous models.TimeRange) {
	currentStart := now.Add(-s.opts.Window)
	previousStart := now.Add(-2 * s.opts.Window)
	return models.TimeRange{From: &currentStart},
		models.TimeRange{From: &previousStart, To: &currentStart}
}

type tagStats struct {
	current  float64
	previous float64
	allTime  float64
	avgAge   float64
	hasAge   bool
}

// Compute returns the top trending tags as of now. A failure of any window
// query fails the whole run.
func (s *Scorer) Compute(ctx context.Context, now time.Time) ([]models.TrendingEntry, error) {
	start := time.Now()
	currentRange, previousRange := s.Windows(now)

	var current, previous, allTime []models.TagEngagementSample
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.store.TagEngagement(gctx, currentRange, now)
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = s.store.TagEngagement(gctx, previousRange, now)
		return err
	})
	g.Go(func() error {
		var err error
		allTime, err = s.store.TagEngagement(gctx, models.TimeRange{}, now)
		return err
	})
	if err := g.Wait(); err != nil {
		slog.Error("[TrendScorer] Window query failed, aborting run",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("[TrendScorer] failed to aggregate tag engagement: %w", err)
	}

	stats := make(map[string]*tagStats)
	get := func(tag string) *tagStats {
		st, ok := stats[tag]
		if !ok {
			st = &tagStats{}
			stats[tag] = st
		}
		return st
	}
	for _, sample := range current {
		get(sample.Tag).current += sample.Engagement
	}
	for _, sample := range previous {
		get(sample.Tag).previous += sample.Engagement
	}
	for _, sample := range allTime {
		st := get(sample.Tag)
		st.allTime += sample.Engagement
		st.avgAge = sample.AverageAgeHours
		st.hasAge = true
	}

	entries := make([]models.TrendingEntry, 0, len(stats))
	for tag, st := range stats {
		avgAge := s.opts.DefaultAvgAgeHours
		if st.hasAge {
			avgAge = st.avgAge
		}
		entries = append(entries, models.TrendingEntry{
			Tag:      tag,
			Mentions: st.allTime,
			Growth:   int64(math.Round(st.current - st.previous)),
			Score:    roundTo(CompositeScore(st.current, st.previous, st.allTime, avgAge, s.opts), 2),
			Category: models.TrendingCategoryTag,
		})
	}

	slices.SortFunc(entries, func(a, b models.TrendingEntry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Tag, b.Tag)
	})
	if len(entries) > s.opts.Limit {
		entries = entries[:s.opts.Limit]
	}

	slog.Info("[TrendScorer] Computed trending tags",
		slog.Int("tags_seen", len(stats)),
		slog.Int("returned", len(entries)),
		slog.Duration("elapsed", time.Since(start)))
	return entries, nil
}
