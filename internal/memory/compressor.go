package memory

import (
	"context"
	"fmt"

	"github.com/memfab/memfab/internal/store"
)

// Summarizer reduces a message's text to a shorter form. Implementations
// must be pure; the selection logic never depends on what the summarizer
// produces.
type Summarizer func(text string) string

const (
	// compressionFloor is the conversation length at or below which Compress
	// is a no-op.
	compressionFloor = 5

	// protectedEdge is the number of messages protected at each end of the
	// conversation, independent of the target ratio.
	protectedEdge = 2

	// compressedPrefix marks rewritten content.
	compressedPrefix = "[COMPRESSED] "

	// summaryLimit is the character budget of the default summarizer.
	summaryLimit = 200
)

// TruncateSummarizer returns the placeholder summarizer: the first limit
// characters of the text, with an ellipsis marker when truncated. A
// higher-quality summarizer can be swapped in via WithSummarizer without
// touching selection logic.
func TruncateSummarizer(limit int) Summarizer {
	return func(text string) string {
		runes := []rune(text)
		if len(runes) <= limit {
			return text
		}
		return string(runes[:limit]) + "..."
	}
}

// Compress rewrites the compressible middle of a conversation to shorter
// summaries and returns the full message list with the mutations applied.
//
// Conversations of compressionFloor or fewer messages are returned
// unchanged. Otherwise the first and last protectedEdge messages are never
// touched, and already-compressed messages are skipped, so repeated calls
// converge. targetRatio is recorded on each rewritten message as the
// requested (not achieved) ratio; it does not influence which messages are
// selected.
//
// The batch commits atomically per conversation: on failure no rewrite is
// visible to subsequent reads.
func (m *Manager) Compress(ctx context.Context, conversationID string, targetRatio float64) ([]store.Message, error) {
	msgs, err := m.store.List(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if len(msgs) <= compressionFloor {
		return msgs, nil
	}

	// Ratio-derived keep count, kept for reporting only.
	keepCount := int(float64(len(msgs)) * targetRatio)
	if keepCount < protectedEdge {
		keepCount = protectedEdge
	}

	var batch []store.Message
	for i := protectedEdge; i < len(msgs)-protectedEdge; i++ {
		if msgs[i].Compressed {
			continue
		}
		msgs[i].Content = compressedPrefix + m.summarizer(msgs[i].Content)
		msgs[i].Compressed = true
		msgs[i].CompressionRatio = targetRatio
		batch = append(batch, msgs[i])
	}

	if len(batch) > 0 {
		if err := m.store.UpdateBatch(ctx, batch); err != nil {
			m.metrics.RecordCompression("error", 0)
			return nil, fmt.Errorf("commit compression batch: %w", err)
		}
	}

	m.metrics.RecordCompression("ok", len(batch))
	m.logger.Info("conversation compressed",
		"conversation", conversationID,
		"messages", len(msgs),
		"compressed", len(batch),
		"target_ratio", targetRatio,
		"keep_count", keepCount)
	return msgs, nil
}
