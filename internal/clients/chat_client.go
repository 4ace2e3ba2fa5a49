package clients

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spacesedan/trendlens/config"
	"github.com/spacesedan/trendlens/internal/models"
)

const summarizerSystemPrompt = `You write short, plain descriptions of what online content a reader would enjoy.
Answer in two or three sentences of prose. Mention concrete topics, technologies and communities.
No lists, no headings, no preamble.`

// ChatClient is the LLM summarizer.
type ChatClient struct {
	Client  *openai.Client
	model   string
	enabled bool
}

func NewChatClient(cfg config.OpenAIConfig) *ChatClient {
	return newChatClient(cfg, "")
}

func newChatClient(cfg config.OpenAIConfig, baseURL string) *ChatClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(1),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &ChatClient{
		Client:  openai.NewClient(opts...),
		model:   cfg.ChatModel,
		enabled: cfg.APIKey != "",
	}
}

// Summarize turns prompt into prose. Output fences and surrounding whitespace
// are stripped.
func (c *ChatClient) Summarize(ctx context.Context, prompt string) (string, error) {
	if !c.enabled {
		return "", fmt.Errorf("[ChatClient] no API key configured: %w", models.ErrConfiguration)
	}

	start := time.Now()
	completion, err := c.Client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summarizerSystemPrompt),
			openai.UserMessage(prompt),
		}),
		Model:       openai.F(openai.ChatModel(c.model)),
		Temperature: openai.Float(0.5),
	})
	if err != nil {
		return "", models.Upstream("chat completion", err)
	}

	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return "", models.Upstream("chat completion", fmt.Errorf("empty response"))
	}

	slog.Debug("[ChatClient] Summary request successful",
		slog.Duration("elapsed", time.Since(start)))
	return cleanCompletion(completion.Choices[0].Message.Content), nil
}

func cleanCompletion(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```markdown")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")

	response = strings.ReplaceAll(response, "“", `"`)
	response = strings.ReplaceAll(response, "”", `"`)

	return strings.TrimSpace(response)
}
