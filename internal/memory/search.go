package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/memfab/memfab/internal/store"
)

// defaultSearchLimit is used when callers pass a non-positive limit.
const defaultSearchLimit = 5

// Cosine returns the cosine similarity of two vectors. It is 0 when either
// vector has zero norm (or when lengths differ), so degenerate inputs rank
// last instead of failing.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Search ranks stored messages by semantic similarity to query, most similar
// first. conversationID scopes the candidate set; empty means the whole
// store. Messages without an embedding are excluded. Ties are broken by
// creation order, earlier message first, so rankings are deterministic.
//
// This is a brute-force scan: correctness and determinism over asymptotic
// performance at this scale. An approximate index can replace it behind the
// same contract.
func (m *Manager) Search(ctx context.Context, query, conversationID string, limit int) ([]store.Message, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	start := time.Now()

	// Concurrent searches for the same query share one embedding call. The
	// key includes the model so a provider swap never reuses stale vectors.
	v, err, _ := m.queries.Do(m.embedder.Model()+"\x00"+query, func() (interface{}, error) {
		return m.embedder.Embed(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryVec := v.([]float32)

	var candidates []store.Message
	if conversationID != "" {
		candidates, err = m.store.List(ctx, conversationID)
	} else {
		candidates, err = m.store.All(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	type scored struct {
		msg store.Message
		sim float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, msg := range candidates {
		if len(msg.Embedding) == 0 {
			continue
		}
		ranked = append(ranked, scored{msg: msg, sim: Cosine(queryVec, msg.Embedding)})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].sim != ranked[j].sim {
			return ranked[i].sim > ranked[j].sim
		}
		return ranked[i].msg.ID < ranked[j].msg.ID
	})

	if limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]store.Message, 0, limit)
	for _, r := range ranked[:limit] {
		out = append(out, r.msg)
	}

	m.metrics.RecordSearch(time.Since(start))
	m.logger.Debug("similarity search",
		"conversation", conversationID,
		"candidates", len(candidates),
		"returned", len(out))
	return out, nil
}
