package recommend

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spacesedan/trendlens/internal/models"
)

type memoryCache struct {
	mu      sync.Mutex
	values  map[string]string
	ttls    map[string]time.Duration
	sets    int
	readErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return "", false, c.readErr
	}
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	c.ttls[key] = ttl
	c.sets++
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
		delete(c.ttls, k)
	}
	return nil
}

type fakePrefs map[string]models.UserPreferences

func (f fakePrefs) GetUserPreferences(_ context.Context, userID string) (models.UserPreferences, error) {
	p, ok := f[userID]
	if !ok {
		return models.UserPreferences{}, models.ErrNotFound
	}
	return p, nil
}

type fakeEmbedder struct {
	model string
	err   error
	texts []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (models.EmbeddingVector, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return models.EmbeddingVector{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) Model() string {
	return f.model
}

type fakeSummarizer struct {
	out   string
	err   error
	calls int
}

func (f *fakeSummarizer) Summarize(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.out, f.err
}

type fakeIndex struct {
	matches []models.VectorMatch
	err     error
	queries []models.VectorQuery
}

func (f *fakeIndex) KNNSearch(_ context.Context, q models.VectorQuery) ([]models.VectorMatch, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	n := min(q.TopK, len(f.matches))
	return append([]models.VectorMatch(nil), f.matches[:n]...), nil
}

var errUpstream = errors.New("upstream unavailable")
