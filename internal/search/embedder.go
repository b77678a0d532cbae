// Package search implements the retrieval side of the knowledge base:
// the embedding client, the hybrid BM25+vector ranker with reciprocal
// rank fusion, and the sparse graph-hint augmentation.
package search

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
)

// Embedder turns entry text into a fixed-dimension vector via Ollama's
// embed endpoint. It degrades gracefully: when the server is down every
// call yields nil and search falls back to FTS-only.
type Embedder struct {
	client  *api.Client
	model   string
	dim     int
	timeout time.Duration

	mu        sync.Mutex
	available bool // only success is cached; failure re-probes
}

// NewEmbedder builds an embedding client for baseURL and model.
func NewEmbedder(baseURL, model string, dim int, timeout time.Duration) (*Embedder, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Embedder{
		client:  api.NewClient(u, &http.Client{Timeout: timeout}),
		model:   model,
		dim:     dim,
		timeout: timeout,
	}, nil
}

// IsAvailable probes the server with a lightweight list call on first
// use. Only success is cached - after a failure the next call re-probes.
func (e *Embedder) IsAvailable(ctx context.Context) bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.available {
		return true
	}
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := e.client.List(probeCtx); err != nil {
		slog.Warn("ollama not available - embeddings disabled", "error", err)
		return false
	}
	e.available = true
	return true
}

// Embed generates an embedding for text. Returns nil when the embedder
// is unavailable, the call fails, or the vector has the wrong dimension.
func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	if !e.IsAvailable(ctx) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.Embed(ctx, &api.EmbedRequest{Model: e.model, Input: text})
	if err != nil {
		slog.Warn("embedding generation failed", "error", err)
		e.mu.Lock()
		e.available = false
		e.mu.Unlock()
		return nil
	}
	if len(resp.Embeddings) == 0 {
		slog.Warn("embed response carried no vectors")
		return nil
	}
	vec := resp.Embeddings[0]
	if len(vec) != e.dim {
		slog.Warn("embedding dimension mismatch", "got", len(vec), "want", e.dim)
		return nil
	}
	return vec
}
