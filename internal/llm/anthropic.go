package llm

import (
	"context"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// AnthropicClient implements Client using the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient creates a transport with an explicit API key.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Chat sends a non-streaming chat request.
func (c *AnthropicClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(m.Content),
			))
		default:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(m.Content),
			))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(req.MaxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic chat: %w", err)
	}

	resp := &ChatResponse{
		Usage: TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		if block.Type == "text" {
			resp.Content += block.Text
		}
	}
	return resp, nil
}

// AnthropicAdapter is the Claude variant of the provider adapter.
type AnthropicAdapter struct {
	costModel
	model     string
	client    Client
	maxTokens int
}

// NewAnthropicAdapter creates an adapter backed by the Anthropic SDK.
// An empty API key is rejected here so misconfiguration surfaces at
// registration, not on the first generation call.
func NewAnthropicAdapter(apiKey, model string) (*AnthropicAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic adapter: %w", ErrMissingCredential)
	}
	a := NewAnthropicAdapterWithClient(NewAnthropicClient(apiKey), model)
	return a, nil
}

// NewAnthropicAdapterWithClient creates an adapter over an explicit
// transport. A nil client leaves generation unimplemented; estimates still
// work.
func NewAnthropicAdapterWithClient(client Client, model string) *AnthropicAdapter {
	return &AnthropicAdapter{
		costModel: costModel{pricing: anthropicPricing, estimate: EstimateTokens},
		model:     model,
		client:    client,
		maxTokens: 4096,
	}
}

// Describe returns static capability metadata.
func (a *AnthropicAdapter) Describe() ModelInfo {
	return ModelInfo{
		Provider:          "anthropic",
		Model:             a.model,
		MaxTokens:         a.maxTokens,
		SupportsFunctions: false,
	}
}

// Generate executes a model call and returns the normalized response.
func (a *AnthropicAdapter) Generate(ctx context.Context, messages []Message, opts GenerateOptions) (*Response, error) {
	return generate(ctx, a.client, a.model, a.maxTokens, a.pricing, messages, opts)
}

// generate is the shared transport-to-response path for all adapters.
func generate(ctx context.Context, client Client, model string, defaultMax int, pricing Pricing, messages []Message, opts GenerateOptions) (*Response, error) {
	if client == nil {
		return nil, fmt.Errorf("model %s: %w", model, ErrNotImplemented)
	}

	system, turns := splitSystem(messages)
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMax
	}

	resp, err := client.Chat(ctx, ChatRequest{
		Model:       model,
		Messages:    turns,
		System:      system,
		MaxTokens:   maxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return nil, err
	}

	tokens := resp.Usage.Total()
	if tokens == 0 {
		// Transport reported no usage; fall back to the estimator.
		tokens = int(EstimateTokens(append(turns, Message{Content: resp.Content})))
	}

	return &Response{
		Content:         resp.Content,
		ModelUsed:       model,
		TokenCount:      tokens,
		Cost:            pricing.Cost(float64(tokens)),
		CarbonFootprint: pricing.Carbon(float64(tokens)),
	}, nil
}
