package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Local is a deterministic, dependency-free embedding provider: a hashed
// bag-of-words over lowercased whitespace tokens, L2-normalized. It captures
// lexical overlap only, which is enough for tests, development, and offline
// operation. Production deployments substitute an HTTP provider behind the
// same interface.
type Local struct {
	dims int
}

// DefaultLocalDimensions is the vector size used when none is configured.
const DefaultLocalDimensions = 256

// NewLocal creates a local provider with the given dimensionality.
func NewLocal(dims int) *Local {
	if dims <= 0 {
		dims = DefaultLocalDimensions
	}
	return &Local{dims: dims}
}

// Embed computes the hashed bag-of-words vector for text. Empty or
// whitespace-only text yields the zero vector, which similarity scoring
// treats as "matches nothing".
func (l *Local) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, l.dims)

	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%l.dims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := 1 / math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) * inv)
		}
	}
	return vec, nil
}

// Dimensions returns the configured vector size.
func (l *Local) Dimensions() int { return l.dims }

// Model returns the provider identifier.
func (l *Local) Model() string { return "local-bow-fnv32" }
