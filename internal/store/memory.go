package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. It is the test and
// development default; data does not survive a restart.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	messages      map[string][]Message // conversation ID → messages in creation order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]Message),
	}
}

// CreateConversation registers a conversation container.
func (s *MemoryStore) CreateConversation(_ context.Context, id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureConversation(id), nil
}

// ensureConversation returns the conversation, creating it if absent.
// Caller must hold the write lock.
func (s *MemoryStore) ensureConversation(id string) *Conversation {
	if conv, ok := s.conversations[id]; ok {
		return conv
	}
	now := time.Now().UTC()
	conv := &Conversation{ID: id, CreatedAt: now, UpdatedAt: now}
	s.conversations[id] = conv
	return conv
}

// Conversation returns a conversation's aggregates.
func (s *MemoryStore) Conversation(_ context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %q: %w", id, ErrConversationNotFound)
	}
	copied := *conv
	return &copied, nil
}

// Append stores a new message and folds its accounting fields into the
// conversation aggregates.
func (s *MemoryStore) Append(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	msg.ID = NewMessageID(now)
	msg.CreatedAt = now

	conv := s.ensureConversation(msg.ConversationID)
	conv.TotalTokens += msg.TokenCount
	conv.EstimatedCost += msg.Cost
	conv.EstimatedCarbon += msg.CarbonFootprint
	conv.UpdatedAt = now
	if msg.ModelUsed != "" {
		conv.CurrentModel = msg.ModelUsed
	}

	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], *msg)
	return nil
}

// Recent returns up to limit messages, newest first.
func (s *MemoryStore) Recent(_ context.Context, conversationID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[conversationID]
	if limit <= 0 || limit > len(msgs) {
		limit = len(msgs)
	}

	out := make([]Message, 0, limit)
	for i := len(msgs) - 1; i >= len(msgs)-limit; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

// List returns all messages of a conversation in creation order.
func (s *MemoryStore) List(_ context.Context, conversationID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages[conversationID]...), nil
}

// All returns every stored message in creation order across conversations.
func (s *MemoryStore) All(_ context.Context) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Message
	for _, msgs := range s.messages {
		out = append(out, msgs...)
	}
	// ULIDs sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateBatch rewrites compression fields for the given messages. The whole
// batch is validated before anything is applied, so a missing message leaves
// the store untouched.
func (s *MemoryStore) UpdateBatch(_ context.Context, msgs []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	type target struct {
		conversationID string
		index          int
	}
	targets := make([]target, 0, len(msgs))
	for _, m := range msgs {
		idx := -1
		for i, existing := range s.messages[m.ConversationID] {
			if existing.ID == m.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("message %q: %w", m.ID, ErrMessageNotFound)
		}
		targets = append(targets, target{m.ConversationID, idx})
	}

	for i, m := range msgs {
		stored := &s.messages[m.ConversationID][targets[i].index]
		stored.Content = m.Content
		stored.Compressed = m.Compressed
		stored.CompressionRatio = m.CompressionRatio
	}
	return nil
}
