package llm

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaClient generates text via a local Ollama server.
type OllamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration

	mu        sync.Mutex
	available bool // only success is cached; failure re-probes
}

// NewOllamaClient builds a client against baseURL (e.g.
// http://localhost:11434).
func NewOllamaClient(baseURL, model string, timeout time.Duration) (*OllamaClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &OllamaClient{
		client:  api.NewClient(u, &http.Client{Timeout: timeout}),
		model:   model,
		timeout: timeout,
	}, nil
}

// IsAvailable probes the server with a lightweight list call. Success
// is cached; failure resets the cache so a later call retries.
func (c *OllamaClient) IsAvailable(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.available {
		return true
	}
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := c.client.List(probeCtx); err != nil {
		slog.Warn("ollama not available - LLM disabled", "error", err)
		return false
	}
	c.available = true
	return true
}

// Generate calls /api/generate without streaming. Returns "" on failure.
func (c *OllamaClient) Generate(ctx context.Context, prompt, system string) string {
	if !c.IsAvailable(ctx) {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream := false
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		System: system,
		Stream: &stream,
	}

	var sb strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		slog.Warn("ollama generation failed", "error", err)
		c.mu.Lock()
		c.available = false
		c.mu.Unlock()
		return ""
	}
	return sb.String()
}

// Close is a no-op; the underlying HTTP client needs no teardown.
func (c *OllamaClient) Close() error { return nil }
