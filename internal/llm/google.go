package llm

import (
	"context"
	"fmt"
)

// googleCompatURL is Google's OpenAI-compatible chat completions endpoint
// for the Gemini API.
const googleCompatURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// GoogleAdapter is the Gemini variant of the provider adapter. It speaks the
// OpenAI-compatible surface of the Gemini API, so it reuses OpenAIClient as
// its transport.
type GoogleAdapter struct {
	costModel
	model     string
	client    Client
	maxTokens int
}

// NewGoogleAdapter creates an adapter backed by the Gemini compatibility endpoint.
func NewGoogleAdapter(apiKey, model string) (*GoogleAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google adapter: %w", ErrMissingCredential)
	}
	return NewGoogleAdapterWithClient(NewOpenAICompatibleClient(googleCompatURL, apiKey), model), nil
}

// NewGoogleAdapterWithClient creates an adapter over an explicit transport.
func NewGoogleAdapterWithClient(client Client, model string) *GoogleAdapter {
	return &GoogleAdapter{
		costModel: costModel{pricing: googlePricing, estimate: EstimateTokens},
		model:     model,
		client:    client,
		maxTokens: 8192,
	}
}

// Describe returns static capability metadata.
func (a *GoogleAdapter) Describe() ModelInfo {
	return ModelInfo{
		Provider:          "google",
		Model:             a.model,
		MaxTokens:         a.maxTokens,
		SupportsFunctions: true,
	}
}

// Generate executes a model call and returns the normalized response.
func (a *GoogleAdapter) Generate(ctx context.Context, messages []Message, opts GenerateOptions) (*Response, error) {
	return generate(ctx, a.client, a.model, a.maxTokens, a.pricing, messages, opts)
}
