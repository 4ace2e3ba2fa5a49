package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type ValkeyConfig struct {
	Address  string
	Password string
	UseTLS   bool
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type OpensearchConfig struct {
	Endpoint string
	Username string
	Password string
	// UseSigV4 signs requests for the AWS managed service instead of basic auth.
	UseSigV4  bool
	Index     string
	Dimension int
}

type AWSConfig struct {
	Region                string
	Endpoint              string
	PreferencesTableName  string
	TrendingTagsTableName string
}

type KafkaConfig struct {
	Broker        string
	GroupID       string
	ContentTopic  string
	TrendingTopic string
}

type OpenAIConfig struct {
	APIKey         string
	EmbeddingModel string
	ChatModel      string
	Timeout        time.Duration
}

type TrendingConfig struct {
	Window             time.Duration
	Limit              int
	Alpha              float64
	Beta               float64
	Gamma              float64
	DefaultAvgAgeHours float64
	Interval           time.Duration
	SnapshotTTL        time.Duration
}

type RecommendConfig struct {
	EnrichProfiles      bool
	ProfileEmbeddingTTL time.Duration
	ResultTTL           time.Duration
}

type IndexerConfig struct {
	BatchSize      int
	BatchTimeout   time.Duration
	HealthInterval time.Duration
	// BackfillWindow re-indexes content newer than now-BackfillWindow on
	// start; zero disables it.
	BackfillWindow time.Duration
}

type Config struct {
	Env        string
	LogLevel   string
	Valkey     ValkeyConfig
	Postgres   PostgresConfig
	Opensearch OpensearchConfig
	AWS        AWSConfig
	Kafka      KafkaConfig
	OpenAI     OpenAIConfig
	Trending   TrendingConfig
	Recommend  RecommendConfig
	Indexer    IndexerConfig
}

// Load reads the typed configuration from the environment. Call LoadEnv first
// when an env file should be honoured.
func Load() Config {
	env := getEnv("APP_ENV", "dev")
	return Config{
		Env:      env,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Valkey: ValkeyConfig{
			Address:  getEnv("VALKEY_INIT_ADDRESS", "localhost:6379"),
			Password: os.Getenv("VALKEY_PASSWORD"),
			UseTLS:   getEnvBool("VALKEY_TLS", false),
		},
		Postgres: PostgresConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnv("DB_NAME", "trendlens"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Opensearch: OpensearchConfig{
			Endpoint:  getEnv("OPENSEARCH_ENDPOINT", "https://localhost:9200"),
			Username:  getEnv("OPENSEARCH_USERNAME", "admin"),
			Password:  os.Getenv("OPENSEARCH_PASSWORD"),
			UseSigV4:  env == "prod",
			Index:     getEnv("OPENSEARCH_CONTENT_INDEX", "content-embeddings"),
			Dimension: getEnvInt("EMBEDDING_DIMENSION", 1536),
		},
		AWS: AWSConfig{
			Region:                getEnv("AWS_REGION", "us-west-2"),
			Endpoint:              os.Getenv("AWS_ENDPOINT"),
			PreferencesTableName:  getEnv("PREFERENCES_TABLE_NAME", "UserPreferences"),
			TrendingTagsTableName: getEnv("TRENDING_TABLE_NAME", "TrendingTags"),
		},
		Kafka: KafkaConfig{
			Broker:        getEnv("KAFKA_BROKER", "localhost:29092"),
			GroupID:       getEnv("KAFKA_CONSUMER_GROUP_ID", "trendlens-indexer"),
			ContentTopic:  getEnv("KAFKA_CONTENT_TOPIC", "content-items"),
			TrendingTopic: getEnv("KAFKA_TRENDING_TOPIC", "trending-tags"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			ChatModel:      getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			Timeout:        getEnvDuration("OPENAI_TIMEOUT", 60*time.Second),
		},
		Trending: TrendingConfig{
			Window:             getEnvPositiveDuration("TRENDING_WINDOW", 6*time.Hour),
			Limit:              getEnvPositiveInt("TRENDING_LIMIT", 20),
			Alpha:              getEnvFloat("TRENDING_ALPHA", 1),
			Beta:               getEnvFloat("TRENDING_BETA", 1),
			Gamma:              getEnvFloat("TRENDING_GAMMA", 1.2),
			DefaultAvgAgeHours: getEnvFloat("TRENDING_DEFAULT_AVG_AGE_HOURS", 12),
			Interval:           getEnvPositiveDuration("TRENDING_INTERVAL", time.Hour),
			SnapshotTTL:        getEnvDuration("TRENDING_SNAPSHOT_TTL", 24*time.Hour),
		},
		Recommend: RecommendConfig{
			EnrichProfiles:      getEnvBool("RECOMMEND_ENRICH_PROFILES", true),
			ProfileEmbeddingTTL: getEnvDuration("PROFILE_EMBEDDING_TTL", 24*time.Hour),
			ResultTTL:           getEnvDuration("RECOMMENDATION_TTL", time.Hour),
		},
		Indexer: IndexerConfig{
			BatchSize:      getEnvPositiveInt("INDEXER_BATCH_SIZE", 50),
			BatchTimeout:   getEnvPositiveDuration("INDEXER_BATCH_TIMEOUT", 5*time.Second),
			HealthInterval: getEnvPositiveDuration("INDEXER_HEALTH_INTERVAL", 30*time.Second),
			BackfillWindow: getEnvDuration("INDEXER_BACKFILL_WINDOW", 0),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		slog.Warn("[Config] Invalid boolean, using default",
			slog.String("key", key), slog.String("value", value))
		return defaultValue
	}
	return b
}

func getEnvInt(key string, defaultValue int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		slog.Warn("[Config] Invalid integer, using default",
			slog.String("key", key), slog.String("value", value))
		return defaultValue
	}
	return n
}

// getEnvPositiveInt falls back to defaultValue for zero or negative values.
func getEnvPositiveInt(key string, defaultValue int) int {
	n := getEnvInt(key, defaultValue)
	if n <= 0 {
		slog.Warn("[Config] Value must be positive, using default",
			slog.String("key", key), slog.Int("value", n))
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		slog.Warn("[Config] Invalid float, using default",
			slog.String("key", key), slog.String("value", value))
		return defaultValue
	}
	return f
}

// getEnvDuration accepts Go durations ("90m") as well as bare seconds ("5400"),
// the format the schedulers used historically.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	value = strings.TrimSpace(value)
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("[Config] Invalid duration, using default",
			slog.String("key", key), slog.String("value", value))
		return defaultValue
	}
	return d
}

// getEnvPositiveDuration is for tickers and windows, where zero or negative
// durations are invalid.
func getEnvPositiveDuration(key string, defaultValue time.Duration) time.Duration {
	d := getEnvDuration(key, defaultValue)
	if d <= 0 {
		slog.Warn("[Config] Duration must be positive, using default",
			slog.String("key", key), slog.Duration("value", d))
		return defaultValue
	}
	return d
}
