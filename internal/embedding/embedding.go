// Package embedding defines the embedding provider abstraction used for
// semantic search over conversation memory.
package embedding

import "context"

// Provider maps a text string to a fixed-dimension vector. Implementations
// must be pure and stable for a given model version: the same text and model
// always yield the same vector. Mixing vectors from different models in one
// store silently degrades ranking; keeping the model consistent is the
// caller's responsibility.
type Provider interface {
	// Embed computes the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the dimensionality of produced vectors.
	Dimensions() int

	// Model returns the model identifier, used for logging and for
	// detecting provider mismatches during debugging.
	Model() string
}
