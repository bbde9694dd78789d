// Package llm wraps text-generation providers behind a single Generator
// interface. The synthesis layer depends only on this package; provider
// selection is a configuration concern.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// Request is a single generation request.
type Request struct {
	// System is the system prompt framing the model's role.
	System string

	// Prompt is the user-facing prompt, typically question plus context.
	Prompt string

	// MaxTokens caps the completion length. Zero uses the provider default.
	MaxTokens int

	// Temperature controls sampling. Zero keeps the provider default.
	Temperature float64
}

// Generator produces text completions.
type Generator interface {
	// Name returns the provider name.
	Name() string

	// Generate returns the completion for the request.
	Generate(ctx context.Context, req Request) (string, error)

	// Health checks the provider health.
	Health(ctx context.Context) types.HealthStatus
}

// Config configures a generation provider.
type Config struct {
	// Provider selects the implementation: "openai" or "ollama".
	Provider string `yaml:"provider"`

	// Model is the generation model name. Empty uses the provider default.
	Model string `yaml:"model"`

	// APIKey authenticates cloud-hosted providers. Empty falls back to the
	// provider's environment variable.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds a single generation round-trip.
	Timeout types.Duration `yaml:"timeout"`

	// MaxTokens is the default completion cap for requests that set none.
	MaxTokens int `yaml:"max_tokens"`
}

// DefaultConfig returns a Config for a local Ollama model.
func DefaultConfig() Config {
	return Config{
		Provider:  "ollama",
		Model:     "llama3.2",
		Timeout:   types.Duration(120 * time.Second),
		MaxTokens: 1024,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	switch c.Provider {
	case "openai", "ollama":
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown generation provider %q (expected openai or ollama)", c.Provider))
	}
	if c.Timeout < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "generator timeout cannot be negative")
	}
	if c.MaxTokens < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "generator max_tokens cannot be negative")
	}
	return nil
}

// New creates a Generator for the configured provider.
func New(config Config) (Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Provider {
	case "openai":
		return NewOpenAIGenerator(config)
	case "ollama":
		return NewOllamaGenerator(config)
	default:
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown generation provider %q", config.Provider))
	}
}

// translateGenerateError maps provider failures onto the error taxonomy.
// Timeouts stay distinct so callers can retry them; everything else is a
// generation failure that fails the whole request.
func translateGenerateError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.WrapRetryableError(types.TIMEOUT,
			fmt.Sprintf("%s generation timed out", provider), err)
	}
	if isConnectionError(err) {
		return types.WrapRetryableError(types.BACKEND_UNAVAILABLE,
			fmt.Sprintf("%s endpoint unreachable", provider), err)
	}
	return types.WrapError(types.GENERATION_FAILED,
		fmt.Sprintf("%s generation failed", provider), err)
}

func isConnectionError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "connection reset")
}
