package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spacesedan/trendlens/config"
	"github.com/spacesedan/trendlens/internal/cache"
	"github.com/spacesedan/trendlens/internal/clients"
	"github.com/spacesedan/trendlens/internal/clients/kafka_client"
	"github.com/spacesedan/trendlens/internal/db"
	"github.com/spacesedan/trendlens/internal/logging"
	"github.com/spacesedan/trendlens/internal/models"
	"github.com/spacesedan/trendlens/internal/trending"
)

const transactionalID = "trendlens-trending"

type trendingJob struct {
	scorer   *trending.Scorer
	cache    cache.Store
	store    *db.TrendingStore
	producer *kafka_client.Producer
	topic    string
	ttl      time.Duration
}

func (j *trendingJob) run(ctx context.Context) {
	start := time.Now()
	entries, err := j.scorer.Compute(ctx, start)
	if err != nil {
		slog.Error("[TrendingJob] Trend scoring failed, keeping previous snapshot",
			slog.String("error", err.Error()))
		return
	}

	snapshot := models.TrendingSnapshot{GeneratedAt: start.UTC(), Entries: entries}

	if err := cache.SetJSON(ctx, j.cache, cache.TrendingKey, snapshot, j.ttl); err != nil {
		slog.Warn("[TrendingJob] Failed to cache trending snapshot",
			slog.String("error", err.Error()))
	}

	if err := j.store.StoreSnapshot(ctx, snapshot, j.ttl); err != nil {
		slog.Warn("[TrendingJob] Failed to persist trending snapshot",
			slog.String("error", err.Error()))
	}

	if j.producer != nil {
		if err := j.producer.Publish(ctx, j.topic, cache.TrendingKey, snapshot); err != nil {
			slog.Warn("[TrendingJob] Failed to publish trending snapshot",
				slog.String("error", err.Error()))
		}
	}

	slog.Info("[TrendingJob] Trending run complete",
		slog.Int("entries", len(entries)),
		slog.Duration("elapsed", time.Since(start)))
}

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	cfg := config.Load()
	logging.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := clients.NewPostgresClient(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("[Main] Failed to connect to PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pg.Close()

	valkey, err := clients.NewValkeyClient(ctx, cfg.Valkey)
	if err != nil {
		slog.Error("[Main] Failed to connect to Valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer valkey.Close()

	awsCfg, err := clients.NewAWSConfig(ctx, cfg.AWS)
	if err != nil {
		slog.Error("[Main] Failed to load AWS config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	dynamo := clients.NewDynamoDBClient(awsCfg, cfg.AWS.Endpoint)

	var producer *kafka_client.Producer
	for attempt := 1; attempt <= 3; attempt++ {
		producer, err = kafka_client.NewProducer(ctx, kafka_client.NewKafkaConfig(cfg.Kafka, transactionalID))
		if err == nil {
			break
		}
		slog.Warn("[Main] Kafka init failed, retrying...",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		time.Sleep(5 * time.Second)
	}
	if producer == nil {
		slog.Warn("[Main] Publishing trending snapshots is disabled")
	} else {
		defer producer.Close()
	}

	job := &trendingJob{
		scorer: trending.NewScorer(db.NewContentStore(pg), trending.Options{
			Window:             cfg.Trending.Window,
			Limit:              cfg.Trending.Limit,
			Alpha:              cfg.Trending.Alpha,
			Beta:               cfg.Trending.Beta,
			Gamma:              cfg.Trending.Gamma,
			DefaultAvgAgeHours: cfg.Trending.DefaultAvgAgeHours,
		}),
		cache:    valkey,
		store:    db.NewTrendingStore(dynamo, cfg.AWS.TrendingTagsTableName),
		producer: producer,
		topic:    cfg.Kafka.TrendingTopic,
		ttl:      cfg.Trending.SnapshotTTL,
	}

	job.run(ctx)

	ticker := time.NewTicker(cfg.Trending.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("[Main] Shutting down trending scheduler")
			return
		case <-ticker.C:
			job.run(ctx)
		}
	}
}
