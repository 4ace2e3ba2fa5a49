package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spacesedan/trendlens/config"
	"github.com/spacesedan/trendlens/internal/clients"
	"github.com/spacesedan/trendlens/internal/clients/kafka_client"
	"github.com/spacesedan/trendlens/internal/db"
	"github.com/spacesedan/trendlens/internal/indexer"
	"github.com/spacesedan/trendlens/internal/logging"
	"github.com/spacesedan/trendlens/internal/monitoring"
)

const backfillLimit = 5000

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

	valkey, err := clients.NewValkeyClient(ctx, cfg.Valkey)
	if err != nil {
		slog.Error("[Main] Failed to connect to Valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer valkey.Close()

	vectorIndex, err := clients.NewOpensearchClient(ctx, cfg.Opensearch, cfg.AWS.Region)
	if err != nil {
		slog.Error("[Main] Failed to create OpenSearch client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := vectorIndex.EnsureIndex(ctx); err != nil {
		slog.Error("[Main] Failed to ensure content index", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ix := indexer.New(clients.NewOpenAIClient(cfg.OpenAI), vectorIndex, valkey)

	if cfg.Indexer.BackfillWindow > 0 {
		pg, err := clients.NewPostgresClient(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("[Main] Failed to connect to PostgreSQL for backfill", slog.String("error", err.Error()))
			os.Exit(1)
		}
		since := time.Now().Add(-cfg.Indexer.BackfillWindow)
		if _, err := ix.Backfill(ctx, db.NewContentStore(pg), since, backfillLimit, cfg.Indexer.BatchSize); err != nil {
			slog.Warn("[Main] Backfill incomplete", slog.String("error", err.Error()))
		}
		pg.Close()
	}

	healthy := &atomic.Bool{}
	healthy.Store(vectorIndex.IsHealthy(ctx))
	go monitoring.MonitorHealth(ctx, "opensearch", vectorIndex, cfg.Indexer.HealthInterval, healthy)

	consumer := indexer.NewConsumer(ix, cfg.Indexer.BatchSize, cfg.Indexer.BatchTimeout, healthy)
	kafkaCfg := kafka_client.NewKafkaConfig(cfg.Kafka, "")
	if err := kafka_client.StartConsumer(ctx, kafkaCfg, cfg.Kafka.ContentTopic, consumer.Run); err != nil {
		slog.Error("[Main] Failed to start consumer", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
