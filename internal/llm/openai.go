package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAIClient implements Client using the OpenAI-compatible chat completions
// API. Works with OpenAI, Google's compatibility endpoint, vLLM, LiteLLM, and
// any other OpenAI-compatible server.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// OpenAIOption configures the OpenAI client.
type OpenAIOption func(*OpenAIClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(o *OpenAIClient) { o.httpClient = c }
}

// NewOpenAIClient creates a transport for the OpenAI API.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	return NewOpenAICompatibleClient("https://api.openai.com/v1", apiKey, opts...)
}

// NewOpenAICompatibleClient creates a transport for any OpenAI-compatible endpoint.
func NewOpenAICompatibleClient(baseURL, apiKey string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat sends a non-streaming chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body := oaiRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, oaiMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, oaiMessage{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}

	var parsed oaiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("openai: decode response (status %d): %w", httpResp.StatusCode, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("openai: API error (status %d): %s", httpResp.StatusCode, parsed.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai: unexpected status %d: %s", httpResp.StatusCode, string(data))
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openai: response contains no choices")
	}

	return &ChatResponse{
		Content: parsed.Choices[0].Message.Content,
		Usage: TokenUsage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
		},
	}, nil
}

// OpenAIAdapter is the GPT variant of the provider adapter.
type OpenAIAdapter struct {
	costModel
	model     string
	client    Client
	maxTokens int
}

// NewOpenAIAdapter creates an adapter backed by the OpenAI API.
func NewOpenAIAdapter(apiKey, model string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai adapter: %w", ErrMissingCredential)
	}
	return NewOpenAIAdapterWithClient(NewOpenAIClient(apiKey), model), nil
}

// NewOpenAIAdapterWithClient creates an adapter over an explicit transport.
func NewOpenAIAdapterWithClient(client Client, model string) *OpenAIAdapter {
	return &OpenAIAdapter{
		costModel: costModel{pricing: openAIPricing(model), estimate: EstimateTokens},
		model:     model,
		client:    client,
		maxTokens: 4096,
	}
}

// Describe returns static capability metadata.
func (a *OpenAIAdapter) Describe() ModelInfo {
	return ModelInfo{
		Provider:          "openai",
		Model:             a.model,
		MaxTokens:         a.maxTokens,
		SupportsFunctions: true,
	}
}

// Generate executes a model call and returns the normalized response.
func (a *OpenAIAdapter) Generate(ctx context.Context, messages []Message, opts GenerateOptions) (*Response, error) {
	return generate(ctx, a.client, a.model, a.maxTokens, a.pricing, messages, opts)
}
