package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"google.golang.org/api/option"
)

var (
	errEmptyResponse = errors.New("empty response")
	errBlocked       = errors.New("response blocked by safety filters")
)

// Client is an abstraction over LLM providers
type Client interface {
	// GenerateContent returns the raw text answer for prompt
	GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GenerateJSON asks for a JSON answer and strips any surrounding prose or code fence
	GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GetModel returns the provider model a tier resolves to
	GetModel(tier ModelTier) string
	Close() error
}

// backend performs one completion against a concrete provider SDK
type backend interface {
	complete(ctx context.Context, req completion) (string, error)
	close() error
}

type completion struct {
	model    string
	prompt   string
	wantJSON bool
}

// client resolves tiers to models and normalizes backend failures into ProviderError
type client struct {
	config  *Config
	backend backend
}

// NewClient builds the client for config.Provider. A nil config uses DefaultConfig.
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for provider %s", config.Provider)
	}

	var (
		b   backend
		err error
	)
	switch config.Provider {
	case ProviderGemini, "":
		b, err = newGeminiBackend(ctx, config, apiKey)
	case ProviderOpenAI:
		b = newOpenAIBackend(config, apiKey)
	default:
		return nil, fmt.Errorf("provider %s is not supported", config.Provider)
	}
	if err != nil {
		return nil, err
	}
	return &client{config: config, backend: b}, nil
}

func (c *client) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.generate(ctx, prompt, tier, false)
}

func (c *client) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	text, err := c.generate(ctx, prompt, tier, true)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

func (c *client) generate(ctx context.Context, prompt string, tier ModelTier, wantJSON bool) (string, error) {
	model := c.config.GetModel(tier)
	if model == "" {
		return "", fmt.Errorf("no %s model configured for tier %s", c.config.Provider, tier)
	}

	text, err := c.backend.complete(ctx, completion{model: model, prompt: prompt, wantJSON: wantJSON})
	if err == nil && strings.TrimSpace(text) == "" {
		err = errEmptyResponse
	}
	if err != nil {
		return "", &ProviderError{Provider: c.config.Provider, Model: model, Err: err}
	}
	return text, nil
}

func (c *client) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

func (c *client) Close() error {
	return c.backend.close()
}

type geminiBackend struct {
	sdk    *genai.Client
	config *Config
}

func newGeminiBackend(ctx context.Context, config *Config, apiKey string) (*geminiBackend, error) {
	sdk, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiBackend{sdk: sdk, config: config}, nil
}

func (g *geminiBackend) complete(ctx context.Context, req completion) (string, error) {
	model := g.sdk.GenerativeModel(req.model)
	model.SetTemperature(float32(g.config.temperature()))
	if g.config.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(g.config.MaxOutputTokens)
	}
	if req.wantJSON {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.prompt))
	if err != nil {
		return "", err
	}
	return geminiText(resp)
}

func (g *geminiBackend) close() error {
	return g.sdk.Close()
}

// geminiText joins the text parts of the first candidate
func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errEmptyResponse
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", errBlocked
	}
	if candidate.Content == nil {
		return "", errEmptyResponse
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

type openAIBackend struct {
	sdk    *openai.Client
	config *Config
}

// newOpenAIBackend targets api.openai.com unless Config.BaseURL names a compatible endpoint
func newOpenAIBackend(config *Config, apiKey string) *openAIBackend {
	opts := []openaioption.RequestOption{openaioption.WithAPIKey(apiKey)}
	if config.BaseURL != "" {
		opts = append(opts, openaioption.WithBaseURL(config.BaseURL))
	}
	return &openAIBackend{sdk: openai.NewClient(opts...), config: config}
}

func (o *openAIBackend) complete(ctx context.Context, req completion) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.prompt),
		}),
		Model:       openai.F(req.model),
		Temperature: openai.F(o.config.temperature()),
	}
	if o.config.MaxOutputTokens > 0 {
		params.MaxTokens = openai.F(int64(o.config.MaxOutputTokens))
	}

	resp, err := o.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *openAIBackend) close() error {
	return nil
}
