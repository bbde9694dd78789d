package embedder

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// OllamaEmbedder implements Embedder for locally-hosted Ollama models.
type OllamaEmbedder struct {
	client *ollama.LLM
	config Config
}

// NewOllamaEmbedder creates a new Ollama embedding provider.
func NewOllamaEmbedder(cfg Config) (*OllamaEmbedder, error) {
	serverURL := cfg.BaseURL
	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}

	opts := []ollama.Option{
		ollama.WithServerURL(serverURL),
	}
	if cfg.Model != "" {
		opts = append(opts, ollama.WithModel(cfg.Model))
	}

	client, err := ollama.New(opts...)
	if err != nil {
		return nil, translateEmbedError("ollama", err)
	}

	return &OllamaEmbedder{client: client, config: cfg}, nil
}

// Name returns the provider name.
func (e *OllamaEmbedder) Name() string {
	return "ollama"
}

// Embed returns the embedding vector for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per input text, in input order.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.config.Timeout))
		defer cancel()
	}

	raw, err := e.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, translateEmbedError("ollama", err)
	}
	if len(raw) != len(texts) {
		return nil, types.NewError(types.EMBEDDING_FAILED,
			"ollama returned a mismatched number of embeddings")
	}

	out := make([][]float64, len(raw))
	for i, v := range raw {
		out[i] = toFloat64(v)
	}
	return out, nil
}

// Health checks the provider with a one-token embedding request.
func (e *OllamaEmbedder) Health(ctx context.Context) types.HealthStatus {
	if _, err := e.Embed(ctx, "ping"); err != nil {
		return types.Unhealthy(err.Error())
	}
	return types.Healthy("ollama embedding endpoint reachable")
}
