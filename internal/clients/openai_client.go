package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spacesedan/trendlens/config"
	"github.com/spacesedan/trendlens/internal/models"
)

const maxEmbeddingAttempts = 3

// OpenAIClient is the embedding service.
type OpenAIClient struct {
	Client  *openai.Client
	model   string
	enabled bool
	backoff time.Duration
}

// NewOpenAIClient never fails on a missing key; Embed reports ErrConfiguration
// instead so binaries that never embed can still start.
func NewOpenAIClient(cfg config.OpenAIConfig) *OpenAIClient {
	return newOpenAIClient(cfg, "")
}

func newOpenAIClient(cfg config.OpenAIConfig, baseURL string) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	if cfg.APIKey == "" {
		slog.Warn("[OpenAIClient] OPENAI_API_KEY is not set, embeddings are disabled")
	} else {
		slog.Info("[OpenAIClient] OpenAI client initialized",
			slog.String("embedding_model", cfg.EmbeddingModel),
			slog.Duration("timeout", cfg.Timeout))
	}

	return &OpenAIClient{
		Client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.EmbeddingModel,
		enabled: cfg.APIKey != "",
		backoff: INITIAL_BACKOFF,
	}
}

// Model names the embedding model; vectors are only comparable within a model.
func (c *OpenAIClient) Model() string {
	return c.model
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) (models.EmbeddingVector, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one request and returns vectors in input order.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([]models.EmbeddingVector, error) {
	if !c.enabled {
		return nil, fmt.Errorf("[OpenAIClient] no API key configured: %w", models.ErrConfiguration)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	}

	var resp openai.EmbeddingResponse
	var err error
	backoff := c.backoff
	start := time.Now()

	for attempt := 1; attempt <= maxEmbeddingAttempts; attempt++ {
		resp, err = c.Client.CreateEmbeddings(ctx, req)
		if err == nil || !isRetryableOpenAIError(err) || attempt == maxEmbeddingAttempts {
			break
		}

		slog.Warn("[OpenAIClient] Embedding request failed, will retry",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return nil, models.Upstream("embedding", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > MAX_BACKOFF {
			backoff = MAX_BACKOFF
		}
	}
	if err != nil {
		slog.Error("[OpenAIClient] Embedding request failed",
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, models.Upstream("embedding", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, models.Upstream("embedding",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	vectors := make([]models.EmbeddingVector, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, models.Upstream("embedding", fmt.Errorf("embedding index %d out of range", d.Index))
		}
		vectors[d.Index] = d.Embedding
	}

	slog.Debug("[OpenAIClient] Embedding request successful",
		slog.Int("inputs", len(texts)),
		slog.Duration("elapsed", time.Since(start)))
	return vectors, nil
}

func isRetryableOpenAIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}
