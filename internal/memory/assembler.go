package memory

import (
	"context"
	"fmt"

	"github.com/memfab/memfab/internal/llm"
)

// GetContext assembles the context window for a model call: the maxMessages
// most recent messages of the conversation, returned oldest first.
//
// It is a pure function of store state at call time; nothing is cached
// between invocations. A missing conversation yields an empty window, not an
// error — callers decide whether empty context is a problem.
//
// includeCompressed=false asks for compressed entries to be expanded back
// toward their original content. The engine keeps no expansion source (the
// original text is overwritten by compression), so the compressed text is
// passed through unchanged. Degraded, documented behavior rather than a
// failure.
func (m *Manager) GetContext(ctx context.Context, conversationID string, maxMessages int, includeCompressed bool) ([]llm.Message, error) {
	recent, err := m.store.Recent(ctx, conversationID, maxMessages)
	if err != nil {
		return nil, fmt.Errorf("fetch recent messages: %w", err)
	}

	// Recent is newest-first; the window is chronological.
	window := make([]llm.Message, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		msg := recent[i]

		window = append(window, llm.Message{
			Role:    llm.Role(msg.Role),
			Content: msg.Content,
			Meta: &llm.MessageMeta{
				MessageID:  msg.ID,
				ModelUsed:  msg.ModelUsed,
				CreatedAt:  msg.CreatedAt,
				Compressed: msg.Compressed,
			},
		})
	}
	return window, nil
}
