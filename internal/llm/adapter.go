package llm

import (
	"context"
	"errors"
)

// Sentinel errors surfaced by adapters and the router. Callers check them
// with errors.Is.
var (
	// ErrModelNotFound is returned when a model name has no registered adapter.
	ErrModelNotFound = errors.New("model not found")

	// ErrNotImplemented is returned by Generate when an adapter has no
	// transport configured. It distinguishes "no backend configured" from a
	// backend returning empty content.
	ErrNotImplemented = errors.New("generation not implemented")

	// ErrMissingCredential is returned at construction time when an adapter
	// requires an API key and none was supplied.
	ErrMissingCredential = errors.New("missing API credential")
)

// ModelInfo describes a registered model's static capabilities.
type ModelInfo struct {
	Provider          string `json:"provider"`
	Model             string `json:"model"`
	MaxTokens         int    `json:"max_tokens"`
	SupportsFunctions bool   `json:"supports_functions"`
}

// Response is the normalized result of a generation call.
type Response struct {
	Content         string  `json:"content"`
	ModelUsed       string  `json:"model_used"`
	TokenCount      int     `json:"token_count"`
	Cost            float64 `json:"cost"`
	CarbonFootprint float64 `json:"carbon_footprint"`
}

// GenerateOptions holds per-call generation parameters.
type GenerateOptions struct {
	Temperature *float64
	MaxTokens   int
}

// Adapter normalizes one vendor's response, cost model, and carbon model
// behind a single capability contract. Concrete adapters differ only in
// their constants table and transport.
type Adapter interface {
	// Describe returns static capability metadata. No I/O.
	Describe() ModelInfo

	// EstimateCost returns the approximate request cost in USD.
	EstimateCost(messages []Message) float64

	// EstimateCarbon returns the approximate request footprint in grams CO2.
	EstimateCarbon(messages []Message) float64

	// Generate executes a model call and returns the normalized response.
	Generate(ctx context.Context, messages []Message, opts GenerateOptions) (*Response, error)
}

// costModel provides the shared estimate arithmetic for concrete adapters.
type costModel struct {
	pricing  Pricing
	estimate TokenEstimator
}

func (c costModel) EstimateCost(messages []Message) float64 {
	return c.pricing.Cost(c.estimate(messages))
}

func (c costModel) EstimateCarbon(messages []Message) float64 {
	return c.pricing.Carbon(c.estimate(messages))
}

// SetTokenEstimator replaces the word-count heuristic with a custom
// estimator, e.g. a real tokenizer. The pricing constants are untouched.
func (c *costModel) SetTokenEstimator(fn TokenEstimator) {
	if fn != nil {
		c.estimate = fn
	}
}

// splitSystem separates system messages from the conversational turns.
// Providers take the system prompt out of band.
func splitSystem(messages []Message) (system string, turns []Message) {
	turns = make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n"
			}
			system += m.Content
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}
