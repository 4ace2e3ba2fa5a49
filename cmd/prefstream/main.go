package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spacesedan/trendlens/config"
	"github.com/spacesedan/trendlens/internal/clients"
	"github.com/spacesedan/trendlens/internal/logging"
	"github.com/spacesedan/trendlens/internal/streams"
)

var handler *streams.PreferencesStreamHandler

// init runs once per Lambda cold start.
func init() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	cfg := config.Load()
	logging.InitLogger(cfg.LogLevel)

	valkey, err := clients.NewValkeyClient(context.Background(), cfg.Valkey)
	if err != nil {
		slog.Error("[Main] Failed to connect to Valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handler = streams.NewPreferencesStreamHandler(valkey)
	slog.Info("[Main] Initialization complete", slog.String("environment", env))
}

func main() {
	lambda.Start(handler.HandleEvent)
}
