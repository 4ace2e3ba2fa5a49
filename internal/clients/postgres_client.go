package clients

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spacesedan/trendlens/config"
)

type Postgres struct {
	DB *pgxpool.Pool
}

func PostgresDSN(cfg config.PostgresConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.Name,
		RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
	}
	return u.String()
}

func NewPostgresClient(ctx context.Context, cfg config.PostgresConfig) (Postgres, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, PostgresDSN(cfg))
	if err != nil {
		return Postgres{}, fmt.Errorf("[PostgresClient] failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return Postgres{}, fmt.Errorf("[PostgresClient] failed to ping PostgreSQL: %w", err)
	}

	slog.Info("[PostgresClient] Connected to PostgreSQL successfully",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Name))
	return Postgres{DB: pool}, nil
}

func (p Postgres) Close() {
	if p.DB != nil {
		p.DB.Close()
	}
}
