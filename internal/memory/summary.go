package memory

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// ConversationSummary is the authoritative roll-up of a conversation,
// computed by scanning its messages rather than reading the incrementally
// maintained aggregates.
type ConversationSummary struct {
	ConversationID string    `json:"conversation_id"`
	MessageCount   int       `json:"message_count"`
	TotalTokens    int       `json:"total_tokens"`
	TotalCost      float64   `json:"total_cost"`
	TotalCarbon    float64   `json:"total_carbon"`
	ModelsUsed     []string  `json:"models_used"`
	CreatedAt      time.Time `json:"created_at"`
	LastUpdated    time.Time `json:"last_updated"`
}

// SummarizeConversation scans all messages of a conversation and returns the
// summed accounting fields. The scan doubles as a cross-check against the
// conversation's running aggregates, which can drift only through external
// mutation. A missing conversation is an explicit NotFound failure.
func (m *Manager) SummarizeConversation(ctx context.Context, conversationID string) (*ConversationSummary, error) {
	conv, err := m.store.Conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	msgs, err := m.store.List(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	summary := &ConversationSummary{
		ConversationID: conversationID,
		MessageCount:   len(msgs),
		CreatedAt:      conv.CreatedAt,
		LastUpdated:    conv.UpdatedAt,
	}

	models := make(map[string]struct{})
	for _, msg := range msgs {
		summary.TotalTokens += msg.TokenCount
		summary.TotalCost += msg.Cost
		summary.TotalCarbon += msg.CarbonFootprint
		if msg.ModelUsed != "" {
			models[msg.ModelUsed] = struct{}{}
		}
	}
	for model := range models {
		summary.ModelsUsed = append(summary.ModelsUsed, model)
	}
	sort.Strings(summary.ModelsUsed)

	return summary, nil
}
