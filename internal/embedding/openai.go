package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAIProvider implements Provider against an OpenAI-compatible
// /embeddings endpoint. Works with OpenAI and with local servers (Ollama,
// vLLM, text-embeddings-inference) that expose the same surface.
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	dims       int
	httpClient *http.Client
}

// OpenAIOption configures the provider.
type OpenAIOption func(*OpenAIProvider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.httpClient = c }
}

// NewOpenAIProvider creates a provider for an OpenAI-compatible endpoint.
// dims must match what the named model produces; it is declared up front so
// stores can validate vector sizes without a network call.
func NewOpenAIProvider(baseURL, apiKey, model string, dims int, opts ...OpenAIOption) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	p := &OpenAIProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		dims:       dims,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed computes the vector for a single text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(embedRequest{Model: p.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding: read response: %w", err)
	}

	var parsed embedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("embedding: decode response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embedding: API error (status %d): %s", resp.StatusCode, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding: unexpected status %d: %s", resp.StatusCode, string(data))
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embedding: response contains no vectors")
	}

	vec := parsed.Data[0].Embedding
	if p.dims > 0 && len(vec) != p.dims {
		return nil, fmt.Errorf("embedding: model %s returned %d dimensions, want %d", p.model, len(vec), p.dims)
	}
	return vec, nil
}

// Dimensions returns the declared vector size.
func (p *OpenAIProvider) Dimensions() int { return p.dims }

// Model returns the model identifier.
func (p *OpenAIProvider) Model() string { return p.model }
