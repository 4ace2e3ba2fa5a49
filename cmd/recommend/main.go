package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spacesedan/trendlens/config"
	"github.com/spacesedan/trendlens/internal/clients"
	"github.com/spacesedan/trendlens/internal/db"
	"github.com/spacesedan/trendlens/internal/logging"
	"github.com/spacesedan/trendlens/internal/models"
	"github.com/spacesedan/trendlens/internal/recommend"
)

type cliArgs struct {
	userID     string
	query      models.RecommendationQuery
	invalidate bool
}

// parseArgs reads the command line. top-k must be at least 1.
func parseArgs(args []string) (cliArgs, error) {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	userID := fs.String("user", "", "user id to recommend for")
	source := fs.String("source", models.FilterAll, "source filter, or \"all\"")
	contentType := fs.String("type", models.FilterAll, "content type filter, or \"all\"")
	topK := fs.Int("top-k", models.DefaultTopK, "number of results")
	discover := fs.Bool("discover", false, "surface low-confidence matches instead")
	invalidate := fs.Bool("invalidate", false, "drop the cached profile embedding first")

	if err := fs.Parse(args); err != nil {
		return cliArgs{}, err
	}
	if *userID == "" {
		return cliArgs{}, errors.New("-user is required")
	}
	if *topK < 1 {
		return cliArgs{}, fmt.Errorf("-top-k must be at least 1, got %d", *topK)
	}

	return cliArgs{
		userID: *userID,
		query: models.RecommendationQuery{
			Source:   *source,
			Type:     *contentType,
			TopK:     *topK,
			Discover: *discover,
		},
		invalidate: *invalidate,
	}, nil
}

func main() {
	args, err := parseArgs(os.Args[1:])
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	cfg := config.Load()
	logging.InitLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

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

	vectorIndex, err := clients.NewOpensearchClient(ctx, cfg.Opensearch, cfg.AWS.Region)
	if err != nil {
		slog.Error("[Main] Failed to create OpenSearch client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ranker := recommend.NewRanker(
		db.NewPreferencesStore(clients.NewDynamoDBClient(awsCfg, cfg.AWS.Endpoint), cfg.AWS.PreferencesTableName),
		clients.NewOpenAIClient(cfg.OpenAI),
		clients.NewChatClient(cfg.OpenAI),
		vectorIndex,
		valkey,
		recommend.Options{
			EnrichProfiles:      cfg.Recommend.EnrichProfiles,
			ProfileEmbeddingTTL: cfg.Recommend.ProfileEmbeddingTTL,
			ResultTTL:           cfg.Recommend.ResultTTL,
			DiscoveryThreshold:  recommend.DefaultOptions().DiscoveryThreshold,
			OverlapBonus:        recommend.DefaultOptions().OverlapBonus,
		},
	)

	if args.invalidate {
		if err := ranker.InvalidateProfile(ctx, args.userID); err != nil {
			slog.Warn("[Main] Failed to invalidate profile", slog.String("error", err.Error()))
		}
	}

	matches, err := ranker.Recommend(ctx, args.userID, args.query)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "no preferences found for user %s\n", args.userID)
			os.Exit(3)
		}
		slog.Error("[Main] Could not generate recommendations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(matches); err != nil {
		slog.Error("[Main] Failed to write recommendations", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
