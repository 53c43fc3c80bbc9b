package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strconv"
	"testing"
)

// backends returns one of each store implementation that can run without
// external services.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "memfab.db"))
	if err != nil {
		t.Fatalf("OpenSQLite returned unexpected error: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func seed(t *testing.T, s Store, conversationID string, n int) []Message {
	t.Helper()
	ctx := context.Background()

	out := make([]Message, 0, n)
	for i := 0; i < n; i++ {
		msg := Message{
			ConversationID:  conversationID,
			Role:            "user",
			Content:         "message " + strconv.Itoa(i),
			TokenCount:      10,
			Cost:            0.01,
			CarbonFootprint: 0.002,
			Embedding:       []float32{float32(i), 1, 0},
		}
		if err := s.Append(ctx, &msg); err != nil {
			t.Fatalf("Append returned unexpected error: %v", err)
		}
		out = append(out, msg)
	}
	return out
}

func TestAppendAssignsOrderedIDs(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			msgs := seed(t, s, "conv-1", 5)

			for i, m := range msgs {
				if m.ID == "" {
					t.Fatalf("message %d has empty ID", i)
				}
				if m.CreatedAt.IsZero() {
					t.Fatalf("message %d has zero CreatedAt", i)
				}
				if i > 0 && msgs[i-1].ID >= m.ID {
					t.Errorf("IDs not strictly increasing: %q >= %q", msgs[i-1].ID, m.ID)
				}
			}
		})
	}
}

func TestConversationAggregates(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s, "conv-agg", 4)

			// One assistant message carrying a model identifier.
			err := s.Append(ctx, &Message{
				ConversationID:  "conv-agg",
				Role:            "assistant",
				Content:         "reply",
				ModelUsed:       "claude-3-sonnet",
				TokenCount:      50,
				Cost:            0.1,
				CarbonFootprint: 0.02,
			})
			if err != nil {
				t.Fatalf("Append returned unexpected error: %v", err)
			}

			conv, err := s.Conversation(ctx, "conv-agg")
			if err != nil {
				t.Fatalf("Conversation returned unexpected error: %v", err)
			}
			if conv.TotalTokens != 4*10+50 {
				t.Errorf("TotalTokens = %d, want %d", conv.TotalTokens, 90)
			}
			if math.Abs(conv.EstimatedCost-(4*0.01+0.1)) > 1e-9 {
				t.Errorf("EstimatedCost = %v, want %v", conv.EstimatedCost, 0.14)
			}
			if math.Abs(conv.EstimatedCarbon-(4*0.002+0.02)) > 1e-9 {
				t.Errorf("EstimatedCarbon = %v, want %v", conv.EstimatedCarbon, 0.028)
			}
			if conv.CurrentModel != "claude-3-sonnet" {
				t.Errorf("CurrentModel = %q, want %q", conv.CurrentModel, "claude-3-sonnet")
			}
		})
	}
}

func TestConversationNotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Conversation(context.Background(), "nope")
			if !errors.Is(err, ErrConversationNotFound) {
				t.Errorf("error = %v, want ErrConversationNotFound", err)
			}
		})
	}
}

func TestRecentNewestFirst(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			msgs := seed(t, s, "conv-recent", 6)

			recent, err := s.Recent(context.Background(), "conv-recent", 3)
			if err != nil {
				t.Fatalf("Recent returned unexpected error: %v", err)
			}
			if len(recent) != 3 {
				t.Fatalf("Recent returned %d messages, want 3", len(recent))
			}
			for i, want := range []string{msgs[5].ID, msgs[4].ID, msgs[3].ID} {
				if recent[i].ID != want {
					t.Errorf("recent[%d].ID = %q, want %q", i, recent[i].ID, want)
				}
			}

			// Missing conversation is empty, not an error.
			empty, err := s.Recent(context.Background(), "missing", 10)
			if err != nil {
				t.Fatalf("Recent on missing conversation: %v", err)
			}
			if len(empty) != 0 {
				t.Errorf("Recent on missing conversation returned %d messages", len(empty))
			}
		})
	}
}

func TestListCreationOrderAndEmbeddings(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s, "conv-list", 3)

			listed, err := s.List(context.Background(), "conv-list")
			if err != nil {
				t.Fatalf("List returned unexpected error: %v", err)
			}
			if len(listed) != 3 {
				t.Fatalf("List returned %d messages, want 3", len(listed))
			}
			for i := 1; i < len(listed); i++ {
				if listed[i-1].ID >= listed[i].ID {
					t.Errorf("List not in creation order at %d", i)
				}
			}
			if len(listed[2].Embedding) != 3 || listed[2].Embedding[0] != 2 {
				t.Errorf("embedding round-trip failed: %v", listed[2].Embedding)
			}
		})
	}
}

func TestAllSpansConversations(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s, "conv-a", 2)
			seed(t, s, "conv-b", 3)

			all, err := s.All(context.Background())
			if err != nil {
				t.Fatalf("All returned unexpected error: %v", err)
			}
			if len(all) != 5 {
				t.Fatalf("All returned %d messages, want 5", len(all))
			}
			for i := 1; i < len(all); i++ {
				if all[i-1].ID >= all[i].ID {
					t.Errorf("All not in creation order at %d", i)
				}
			}
		})
	}
}

func TestUpdateBatch(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			msgs := seed(t, s, "conv-upd", 3)

			msgs[1].Content = "[COMPRESSED] message 1"
			msgs[1].Compressed = true
			msgs[1].CompressionRatio = 0.3
			if err := s.UpdateBatch(context.Background(), []Message{msgs[1]}); err != nil {
				t.Fatalf("UpdateBatch returned unexpected error: %v", err)
			}

			listed, err := s.List(context.Background(), "conv-upd")
			if err != nil {
				t.Fatalf("List returned unexpected error: %v", err)
			}
			got := listed[1]
			if got.Content != "[COMPRESSED] message 1" || !got.Compressed || got.CompressionRatio != 0.3 {
				t.Errorf("updated message = %+v", got)
			}
			// Embedding is untouched by compression updates.
			if len(got.Embedding) != 3 {
				t.Errorf("embedding lost on update: %v", got.Embedding)
			}
		})
	}
}

func TestUpdateBatchAtomicOnMissingMessage(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			msgs := seed(t, s, "conv-atomic", 3)

			batch := []Message{msgs[0], msgs[1]}
			batch[0].Content = "[COMPRESSED] rewritten"
			batch[0].Compressed = true
			batch[1].ID = "msg_DOESNOTEXIST"
			batch[1].Compressed = true

			err := s.UpdateBatch(context.Background(), batch)
			if !errors.Is(err, ErrMessageNotFound) {
				t.Fatalf("error = %v, want ErrMessageNotFound", err)
			}

			// Nothing from the failed batch may be visible.
			listed, err := s.List(context.Background(), "conv-atomic")
			if err != nil {
				t.Fatalf("List returned unexpected error: %v", err)
			}
			if listed[0].Compressed || listed[0].Content != "message 0" {
				t.Errorf("partial mutation visible after failed batch: %+v", listed[0])
			}
		})
	}
}
