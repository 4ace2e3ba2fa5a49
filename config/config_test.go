package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("TRENDING_WINDOW", "")
	t.Setenv("TRENDING_LIMIT", "")

	cfg := Load()

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, 6*time.Hour, cfg.Trending.Window)
	assert.Equal(t, 20, cfg.Trending.Limit)
	assert.Equal(t, 1.2, cfg.Trending.Gamma)
	assert.Equal(t, 12.0, cfg.Trending.DefaultAvgAgeHours)
	assert.Equal(t, 24*time.Hour, cfg.Recommend.ProfileEmbeddingTTL)
	assert.Equal(t, time.Hour, cfg.Recommend.ResultTTL)
	assert.False(t, cfg.Opensearch.UseSigV4)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("TRENDING_INTERVAL", "1800")
	t.Setenv("TRENDING_WINDOW", "3h")
	t.Setenv("TRENDING_DEFAULT_AVG_AGE_HOURS", "48")
	t.Setenv("VALKEY_TLS", "true")

	cfg := Load()

	assert.True(t, cfg.Opensearch.UseSigV4)
	assert.Equal(t, 30*time.Minute, cfg.Trending.Interval)
	assert.Equal(t, 3*time.Hour, cfg.Trending.Window)
	assert.Equal(t, 48.0, cfg.Trending.DefaultAvgAgeHours)
	assert.True(t, cfg.Valkey.UseTLS)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("TRENDING_LIMIT", "lots")
	t.Setenv("VALKEY_TLS", "maybe")
	t.Setenv("TRENDING_INTERVAL", "soon")

	cfg := Load()

	assert.Equal(t, 20, cfg.Trending.Limit)
	assert.False(t, cfg.Valkey.UseTLS)
	assert.Equal(t, time.Hour, cfg.Trending.Interval)
}

func TestNonPositiveBatchingValuesFallBack(t *testing.T) {
	t.Setenv("INDEXER_BATCH_SIZE", "0")
	t.Setenv("INDEXER_BATCH_TIMEOUT", "0")
	t.Setenv("INDEXER_HEALTH_INTERVAL", "-5s")
	t.Setenv("TRENDING_INTERVAL", "0")
	t.Setenv("TRENDING_LIMIT", "-1")

	cfg := Load()

	assert.Equal(t, 50, cfg.Indexer.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Indexer.BatchTimeout)
	assert.Equal(t, 30*time.Second, cfg.Indexer.HealthInterval)
	assert.Equal(t, time.Hour, cfg.Trending.Interval)
	assert.Equal(t, 20, cfg.Trending.Limit)
}

func TestBackfillWindowMayBeZero(t *testing.T) {
	t.Setenv("INDEXER_BACKFILL_WINDOW", "0")

	assert.Zero(t, Load().Indexer.BackfillWindow)
}
