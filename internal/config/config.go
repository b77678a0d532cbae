// Package config provides centralized configuration for nous.
// All default values live here to keep a single source of truth.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LLM provider constants
const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"

	// DefaultExtractionProvider backs graph enrichment.
	DefaultExtractionProvider = ProviderAnthropic
	// DefaultQueryProvider backs query planning and answer synthesis.
	DefaultQueryProvider = ProviderAnthropic
)

// Default model constants
const (
	DefaultAnthropicModel = "claude-haiku-4-5"
	DefaultOllamaModel    = "qwen3:4b"
	DefaultEmbeddingModel = "qwen3-embedding:0.6b"
)

// DefaultOllamaURL is the default URL for a local Ollama server.
const DefaultOllamaURL = "http://localhost:11434"

// Config holds the full runtime configuration.
type Config struct {
	// Store
	StorePath string `mapstructure:"store_path"`

	// Embeddings
	EmbeddingModel string        `mapstructure:"embedding_model"`
	EmbeddingDim   int           `mapstructure:"embedding_dim"`
	OllamaURL      string        `mapstructure:"ollama_url"`
	EmbedTimeout   time.Duration `mapstructure:"embed_timeout"`

	// LLM providers
	ExtractionProvider string        `mapstructure:"extraction_provider"`
	QueryProvider      string        `mapstructure:"query_provider"`
	AnthropicModel     string        `mapstructure:"anthropic_model"`
	AnthropicTimeout   time.Duration `mapstructure:"anthropic_timeout"`
	OllamaModel        string        `mapstructure:"ollama_model"`
	OllamaLLMTimeout   time.Duration `mapstructure:"ollama_llm_timeout"`

	// Graph enrichment
	EntityMatchThreshold float64 `mapstructure:"entity_match_threshold"`

	// Ingestion
	IngestMaxFileSize int64 `mapstructure:"ingest_max_file_size"`

	// Administration
	ManagerMode bool `mapstructure:"manager_mode"`

	// Observability
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		StorePath:            defaultStorePath(),
		EmbeddingModel:       DefaultEmbeddingModel,
		EmbeddingDim:         1024,
		OllamaURL:            DefaultOllamaURL,
		EmbedTimeout:         10 * time.Second,
		ExtractionProvider:   DefaultExtractionProvider,
		QueryProvider:        DefaultQueryProvider,
		AnthropicModel:       DefaultAnthropicModel,
		AnthropicTimeout:     30 * time.Second,
		OllamaModel:          DefaultOllamaModel,
		OllamaLLMTimeout:     120 * time.Second,
		EntityMatchThreshold: 0.85,
		IngestMaxFileSize:    500 * 1024,
		ManagerMode:          false,
		LogLevel:             "warn",
	}
}

// Load reads configuration from viper (env vars prefixed NOUS_ plus an
// optional .nous.yaml) layered over the defaults.
func Load() (Config, error) {
	cfg := DefaultConfig()

	v := viper.GetViper()
	v.SetEnvPrefix("NOUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("store_path", cfg.StorePath)
	v.SetDefault("embedding_model", cfg.EmbeddingModel)
	v.SetDefault("embedding_dim", cfg.EmbeddingDim)
	v.SetDefault("ollama_url", cfg.OllamaURL)
	v.SetDefault("embed_timeout", cfg.EmbedTimeout)
	v.SetDefault("extraction_provider", cfg.ExtractionProvider)
	v.SetDefault("query_provider", cfg.QueryProvider)
	v.SetDefault("anthropic_model", cfg.AnthropicModel)
	v.SetDefault("anthropic_timeout", cfg.AnthropicTimeout)
	v.SetDefault("ollama_model", cfg.OllamaModel)
	v.SetDefault("ollama_llm_timeout", cfg.OllamaLLMTimeout)
	v.SetDefault("entity_match_threshold", cfg.EntityMatchThreshold)
	v.SetDefault("ingest_max_file_size", cfg.IngestMaxFileSize)
	v.SetDefault("manager_mode", cfg.ManagerMode)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_file", cfg.LogFile)
}

// defaultStorePath resolves the platform data directory for the store file.
func defaultStorePath() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".local", "share", "nous", "knowledge.db")
	}
	return filepath.Join(".", "nous", "knowledge.db")
}
