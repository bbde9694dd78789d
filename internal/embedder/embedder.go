// Package embedder turns node text into dense vectors for semantic
// retrieval. Providers wrap langchaingo embedding clients behind a small
// interface so the index layer never sees provider-specific types.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// Embedder produces embedding vectors for text.
type Embedder interface {
	// Name returns the provider name.
	Name() string

	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Health checks the provider health.
	Health(ctx context.Context) types.HealthStatus
}

// Config configures an embedding provider.
type Config struct {
	// Provider selects the implementation: "openai" or "ollama".
	Provider string `yaml:"provider"`

	// Model is the embedding model name. Empty uses the provider default.
	Model string `yaml:"model"`

	// APIKey authenticates cloud-hosted providers. Empty falls back to the
	// provider's environment variable.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider endpoint (local servers, proxies).
	BaseURL string `yaml:"base_url"`

	// Timeout bounds a single embedding round-trip.
	Timeout types.Duration `yaml:"timeout"`
}

// DefaultConfig returns a Config for a local Ollama embedding model.
func DefaultConfig() Config {
	return Config{
		Provider: "ollama",
		Model:    "nomic-embed-text",
		Timeout:  types.Duration(60 * time.Second),
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	switch c.Provider {
	case "openai", "ollama":
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown embedding provider %q (expected openai or ollama)", c.Provider))
	}
	if c.Timeout < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "embedder timeout cannot be negative")
	}
	return nil
}

// New creates an Embedder for the configured provider.
func New(config Config) (Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Provider {
	case "openai":
		return NewOpenAIEmbedder(config)
	case "ollama":
		return NewOllamaEmbedder(config)
	default:
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown embedding provider %q", config.Provider))
	}
}

// toFloat64 widens a provider vector to the canonical float64 form.
func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

// translateEmbedError maps provider failures onto the error taxonomy.
func translateEmbedError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.WrapRetryableError(types.TIMEOUT,
			fmt.Sprintf("%s embedding timed out", provider), err)
	}
	return types.WrapRetryableError(types.EMBEDDING_FAILED,
		fmt.Sprintf("%s embedding request failed", provider), err)
}
