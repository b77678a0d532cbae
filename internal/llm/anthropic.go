package llm

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient generates text via the Anthropic Messages API.
type AnthropicClient struct {
	client  anthropic.Client
	model   anthropic.Model
	timeout time.Duration
}

// NewAnthropicClient builds a client for the given model. Returns nil
// when ANTHROPIC_API_KEY is not set - the caller treats a nil provider
// as "feature disabled".
func NewAnthropicClient(model string, timeout time.Duration) *AnthropicClient {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		slog.Warn("ANTHROPIC_API_KEY not set - anthropic provider disabled")
		return nil
	}
	return &AnthropicClient{
		client:  anthropic.NewClient(option.WithAPIKey(key)),
		model:   anthropic.Model(model),
		timeout: timeout,
	}
}

// IsAvailable reports whether the client can serve requests. The API
// key was verified at construction, so a constructed client is assumed
// reachable until a Generate call proves otherwise.
func (c *AnthropicClient) IsAvailable(ctx context.Context) bool {
	return c != nil
}

// Generate calls the Messages API. Returns "" on any failure.
func (c *AnthropicClient) Generate(ctx context.Context, prompt, system string) string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		slog.Warn("anthropic generation failed", "error", err)
		return ""
	}
	if len(message.Content) == 0 {
		slog.Warn("anthropic response had no content blocks")
		return ""
	}
	block := message.Content[0]
	if block.Type != "text" {
		slog.Warn("anthropic response was not a text block", "type", block.Type)
		return ""
	}
	return block.Text
}

// Close is a no-op; the SDK client holds no persistent connections.
func (c *AnthropicClient) Close() error { return nil }
