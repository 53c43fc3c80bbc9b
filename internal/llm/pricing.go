package llm

import "strings"

// TokenEstimator approximates the token count of a message list.
type TokenEstimator func(messages []Message) float64

// EstimateTokens is the default estimator: whitespace word count times 1.3.
// This is an approximation, not exact tokenization; swap in a real tokenizer
// via SetTokenEstimator when precise accounting matters.
func EstimateTokens(messages []Message) float64 {
	var total float64
	for _, m := range messages {
		total += float64(len(strings.Fields(m.Content))) * 1.3
	}
	return total
}

// Pricing holds fixed per-1000-token constants for one provider/model class.
type Pricing struct {
	CostPer1K   float64 // USD per 1K tokens
	CarbonPer1K float64 // grams CO2 per 1K tokens
}

// Cost converts a token estimate into a USD amount.
func (p Pricing) Cost(tokens float64) float64 {
	return tokens / 1000 * p.CostPer1K
}

// Carbon converts a token estimate into grams CO2.
func (p Pricing) Carbon(tokens float64) float64 {
	return tokens / 1000 * p.CarbonPer1K
}

// Published blended rates, kept deliberately coarse. Carbon figures are
// rough per-1K-token estimates.
var (
	anthropicPricing = Pricing{CostPer1K: 0.015, CarbonPer1K: 0.3}
	googlePricing    = Pricing{CostPer1K: 0.001, CarbonPer1K: 0.2}

	openAIGPT4Pricing    = Pricing{CostPer1K: 0.03, CarbonPer1K: 0.5}
	openAIDefaultPricing = Pricing{CostPer1K: 0.002, CarbonPer1K: 0.5}
)

// openAIPricing selects the rate class for an OpenAI model name.
func openAIPricing(model string) Pricing {
	if strings.Contains(strings.ToLower(model), "gpt-4") {
		return openAIGPT4Pricing
	}
	return openAIDefaultPricing
}
