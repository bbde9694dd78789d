package llm

import (
	"context"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// OllamaGenerator implements Generator for locally-hosted Ollama models.
type OllamaGenerator struct {
	client *ollama.LLM
	config Config
}

// NewOllamaGenerator creates a new Ollama generation provider.
func NewOllamaGenerator(cfg Config) (*OllamaGenerator, error) {
	serverURL := cfg.BaseURL
	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}

	model := cfg.Model
	if model == "" {
		model = "llama3.2"
	}

	client, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, translateGenerateError("ollama", err)
	}

	return &OllamaGenerator{client: client, config: cfg}, nil
}

// Name returns the provider name.
func (g *OllamaGenerator) Name() string {
	return "ollama"
}

// Generate returns the completion for the request.
func (g *OllamaGenerator) Generate(ctx context.Context, req Request) (string, error) {
	return generate(ctx, g.client, g.config, "ollama", req)
}

// Health checks the provider with a one-token completion.
func (g *OllamaGenerator) Health(ctx context.Context) types.HealthStatus {
	_, err := g.Generate(ctx, Request{Prompt: "ping", MaxTokens: 1})
	if err != nil {
		return types.Unhealthy(err.Error())
	}
	return types.Healthy("ollama generation endpoint reachable")
}
