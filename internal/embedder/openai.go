package embedder

import (
	"context"
	"os"
	"time"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// OpenAIEmbedder implements Embedder for OpenAI's cloud-hosted embedding
// models.
type OpenAIEmbedder struct {
	client *openai.LLM
	config Config
}

// NewOpenAIEmbedder creates a new OpenAI embedding provider.
func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED,
			"openai embedder requires an API key (config or OPENAI_API_KEY)")
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithEmbeddingModel(cfg.Model))
	} else {
		opts = append(opts, openai.WithEmbeddingModel("text-embedding-3-small"))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, translateEmbedError("openai", err)
	}

	return &OpenAIEmbedder{client: client, config: cfg}, nil
}

// Name returns the provider name.
func (e *OpenAIEmbedder) Name() string {
	return "openai"
}

// Embed returns the embedding vector for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per input text, in input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
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
		return nil, translateEmbedError("openai", err)
	}
	if len(raw) != len(texts) {
		return nil, types.NewError(types.EMBEDDING_FAILED,
			"openai returned a mismatched number of embeddings")
	}

	out := make([][]float64, len(raw))
	for i, v := range raw {
		out[i] = toFloat64(v)
	}
	return out, nil
}

// Health checks the provider with a one-token embedding request.
func (e *OpenAIEmbedder) Health(ctx context.Context) types.HealthStatus {
	if _, err := e.Embed(ctx, "ping"); err != nil {
		return types.Unhealthy(err.Error())
	}
	return types.Healthy("openai embedding endpoint reachable")
}
