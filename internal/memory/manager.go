// Package memory implements the context memory and retrieval engine:
// message storage with embeddings, context window assembly, lossy history
// compression, and semantic search.
package memory

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/memfab/memfab/internal/embedding"
	"github.com/memfab/memfab/internal/llm"
	"github.com/memfab/memfab/internal/store"
	"github.com/memfab/memfab/internal/telemetry"
)

// Manager is the engine facade. It is request-scoped: no state is retained
// between calls beyond the store and the embedding provider, so any number
// of operations may be in flight concurrently.
type Manager struct {
	store      store.Store
	embedder   embedding.Provider
	summarizer Summarizer
	logger     *slog.Logger
	metrics    *telemetry.Metrics

	// Deduplicates concurrent embedding computations for identical queries.
	queries singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithSummarizer replaces the truncation summarizer used by Compress.
func WithSummarizer(fn Summarizer) Option {
	return func(m *Manager) {
		if fn != nil {
			m.summarizer = fn
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(mx *telemetry.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// NewManager creates an engine over the given store and embedding provider.
func NewManager(s store.Store, e embedding.Provider, opts ...Option) *Manager {
	m := &Manager{
		store:      s,
		embedder:   e,
		summarizer: TruncateSummarizer(summaryLimit),
		logger:     slog.Default(),
		metrics:    telemetry.NewMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StoreMessage persists a message with its embedding and accounting fields.
// The embedding is computed once, from the content as given; it is never
// recomputed, even if compression later rewrites the content.
func (m *Manager) StoreMessage(ctx context.Context, conversationID string, role llm.Role, content, modelUsed string, tokenCount int, cost, carbon float64) (*store.Message, error) {
	vec, err := m.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("embed message: %w", err)
	}

	msg := &store.Message{
		ConversationID:  conversationID,
		Role:            string(role),
		Content:         content,
		ModelUsed:       modelUsed,
		TokenCount:      tokenCount,
		Cost:            cost,
		CarbonFootprint: carbon,
		Embedding:       vec,
	}
	if err := m.store.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	m.metrics.RecordMessageStored(string(role))
	m.logger.Debug("message stored",
		"conversation", conversationID,
		"message", msg.ID,
		"role", role,
		"tokens", tokenCount)
	return msg, nil
}
