package llm

import (
	"log/slog"

	"github.com/noustack/nous/internal/config"
)

// New builds a provider for the given name, or nil when the provider is
// unknown or cannot be constructed. A nil provider disables the feature
// that would have used it; it never aborts startup.
func New(provider string, cfg config.Config) Provider {
	switch provider {
	case config.ProviderAnthropic:
		if c := NewAnthropicClient(cfg.AnthropicModel, cfg.AnthropicTimeout); c != nil {
			return c
		}
		return nil
	case config.ProviderOllama:
		c, err := NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaLLMTimeout)
		if err != nil {
			slog.Warn("ollama client construction failed", "error", err)
			return nil
		}
		return c
	default:
		slog.Warn("unknown LLM provider", "provider", provider)
		return nil
	}
}
