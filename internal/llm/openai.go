package llm

import (
	"context"
	"os"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// OpenAIGenerator implements Generator for OpenAI's cloud-hosted models.
type OpenAIGenerator struct {
	client *openai.LLM
	config Config
}

// NewOpenAIGenerator creates a new OpenAI generation provider.
func NewOpenAIGenerator(cfg Config) (*OpenAIGenerator, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED,
			"openai generator requires an API key (config or OPENAI_API_KEY)")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, translateGenerateError("openai", err)
	}

	return &OpenAIGenerator{client: client, config: cfg}, nil
}

// Name returns the provider name.
func (g *OpenAIGenerator) Name() string {
	return "openai"
}

// Generate returns the completion for the request.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	return generate(ctx, g.client, g.config, "openai", req)
}

// Health checks the provider with a one-token completion.
func (g *OpenAIGenerator) Health(ctx context.Context) types.HealthStatus {
	_, err := g.Generate(ctx, Request{Prompt: "ping", MaxTokens: 1})
	if err != nil {
		return types.Unhealthy(err.Error())
	}
	return types.Healthy("openai generation endpoint reachable")
}

// generate runs one completion against a langchaingo model. Shared by both
// providers since the call shape is identical.
func generate(ctx context.Context, model llms.Model, cfg Config, provider string, req Request) (string, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Timeout))
		defer cancel()
	}

	var messages []llms.MessageContent
	if req.System != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt))

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = cfg.MaxTokens
	}
	var callOpts []llms.CallOption
	if maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(maxTokens))
	}
	if req.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(req.Temperature))
	}

	resp, err := model.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return "", translateGenerateError(provider, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", types.NewError(types.GENERATION_FAILED,
			provider+" returned an empty completion")
	}
	return resp.Choices[0].Content, nil
}
