package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/memfab/memfab/internal/embedding"
	"github.com/memfab/memfab/internal/llm"
	"github.com/memfab/memfab/internal/store"
)

func newTestManager(t *testing.T, opts ...Option) (*Manager, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	m := NewManager(s, embedding.NewLocal(64), opts...)
	return m, s
}

func storeN(t *testing.T, m *Manager, conversationID string, n int) []*store.Message {
	t.Helper()
	out := make([]*store.Message, 0, n)
	for i := 0; i < n; i++ {
		msg, err := m.StoreMessage(context.Background(), conversationID, llm.RoleUser,
			fmt.Sprintf("message number %d", i), "", 10, 0.01, 0.002)
		if err != nil {
			t.Fatalf("StoreMessage returned unexpected error: %v", err)
		}
		out = append(out, msg)
	}
	return out
}

func TestStoreMessageComputesEmbedding(t *testing.T) {
	m, s := newTestManager(t)

	msg, err := m.StoreMessage(context.Background(), "conv-1", llm.RoleUser,
		"hello world", "", 5, 0.001, 0.0002)
	if err != nil {
		t.Fatalf("StoreMessage returned unexpected error: %v", err)
	}

	if len(msg.Embedding) != 64 {
		t.Errorf("embedding length = %d, want 64", len(msg.Embedding))
	}
	if msg.ID == "" || msg.CreatedAt.IsZero() {
		t.Errorf("identity not assigned: %+v", msg)
	}

	conv, err := s.Conversation(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("Conversation returned unexpected error: %v", err)
	}
	if conv.TotalTokens != 5 {
		t.Errorf("TotalTokens = %d, want 5", conv.TotalTokens)
	}
}

func TestGetContextChronological(t *testing.T) {
	m, _ := newTestManager(t)
	stored := storeN(t, m, "conv-ctx", 8)

	window, err := m.GetContext(context.Background(), "conv-ctx", 5, true)
	if err != nil {
		t.Fatalf("GetContext returned unexpected error: %v", err)
	}
	if len(window) != 5 {
		t.Fatalf("window length = %d, want 5", len(window))
	}

	// The 5 most recent messages, oldest first.
	for i, msg := range window {
		want := stored[3+i]
		if msg.Meta == nil || msg.Meta.MessageID != want.ID {
			t.Errorf("window[%d] = %v, want message %s", i, msg.Meta, want.ID)
		}
		if i > 0 && window[i-1].Meta.CreatedAt.After(msg.Meta.CreatedAt) {
			t.Errorf("window not in increasing creation order at %d", i)
		}
	}
	if window[0].Role != llm.RoleUser {
		t.Errorf("role = %q, want %q", window[0].Role, llm.RoleUser)
	}
}

func TestGetContextMissingConversation(t *testing.T) {
	m, _ := newTestManager(t)

	window, err := m.GetContext(context.Background(), "no-such-conversation", 10, true)
	if err != nil {
		t.Fatalf("missing conversation should not be an error, got %v", err)
	}
	if len(window) != 0 {
		t.Errorf("window length = %d, want 0", len(window))
	}
}

func TestGetContextCompressedPassThrough(t *testing.T) {
	m, _ := newTestManager(t)
	storeN(t, m, "conv-exp", 7)

	if _, err := m.Compress(context.Background(), "conv-exp", 0.3); err != nil {
		t.Fatalf("Compress returned unexpected error: %v", err)
	}

	// include_compressed=false requests expansion; with no expansion source
	// the compressed text is passed through unchanged.
	window, err := m.GetContext(context.Background(), "conv-exp", 7, false)
	if err != nil {
		t.Fatalf("GetContext returned unexpected error: %v", err)
	}
	if len(window) != 7 {
		t.Fatalf("window length = %d, want 7", len(window))
	}
	if !window[2].Meta.Compressed {
		t.Fatal("middle message should be flagged compressed")
	}
	if !strings.HasPrefix(window[2].Content, "[COMPRESSED] ") {
		t.Errorf("compressed content should pass through unchanged, got %q", window[2].Content)
	}
}

func TestCompressNoOpAtFloor(t *testing.T) {
	m, s := newTestManager(t)
	storeN(t, m, "conv-short", 5)

	msgs, err := m.Compress(context.Background(), "conv-short", 0.3)
	if err != nil {
		t.Fatalf("Compress returned unexpected error: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("Compress returned %d messages, want 5", len(msgs))
	}

	listed, _ := s.List(context.Background(), "conv-short")
	for i, msg := range listed {
		if msg.Compressed {
			t.Errorf("message %d compressed in a 5-message conversation", i)
		}
		if strings.HasPrefix(msg.Content, "[COMPRESSED]") {
			t.Errorf("message %d content rewritten: %q", i, msg.Content)
		}
	}
}

func TestCompressProtectsHeadAndTail(t *testing.T) {
	m, s := newTestManager(t)
	stored := storeN(t, m, "conv-7", 7)

	msgs, err := m.Compress(context.Background(), "conv-7", 0.3)
	if err != nil {
		t.Fatalf("Compress returned unexpected error: %v", err)
	}
	if len(msgs) != 7 {
		t.Fatalf("Compress returned %d messages, want 7", len(msgs))
	}

	listed, _ := s.List(context.Background(), "conv-7")
	for i, msg := range listed {
		middle := i >= 2 && i <= 4
		if msg.Compressed != middle {
			t.Errorf("message %d: compressed = %v, want %v", i, msg.Compressed, middle)
		}
		if middle {
			if msg.Content != "[COMPRESSED] "+fmt.Sprintf("message number %d", i) {
				t.Errorf("message %d content = %q", i, msg.Content)
			}
			if msg.CompressionRatio != 0.3 {
				t.Errorf("message %d ratio = %v, want the requested 0.3", i, msg.CompressionRatio)
			}
			// Embedding still reflects the original content.
			if len(msg.Embedding) == 0 {
				t.Errorf("message %d lost its embedding", i)
			}
		} else if msg.Content != stored[i].Content {
			t.Errorf("protected message %d rewritten: %q", i, msg.Content)
		}
	}
}

func TestCompressIdempotent(t *testing.T) {
	m, s := newTestManager(t)
	storeN(t, m, "conv-idem", 9)

	ctx := context.Background()
	if _, err := m.Compress(ctx, "conv-idem", 0.4); err != nil {
		t.Fatalf("first Compress: %v", err)
	}
	first, _ := s.List(ctx, "conv-idem")

	if _, err := m.Compress(ctx, "conv-idem", 0.4); err != nil {
		t.Fatalf("second Compress: %v", err)
	}
	second, _ := s.List(ctx, "conv-idem")

	for i := range first {
		if first[i].Content != second[i].Content {
			t.Errorf("message %d changed on second pass: %q -> %q", i, first[i].Content, second[i].Content)
		}
		if strings.HasPrefix(second[i].Content, "[COMPRESSED] [COMPRESSED]") {
			t.Errorf("message %d double-wrapped: %q", i, second[i].Content)
		}
	}
}

func TestCompressTruncatesLongContent(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	long := strings.Repeat("abcde ", 100) // 600 chars
	for i := 0; i < 7; i++ {
		content := fmt.Sprintf("short %d", i)
		if i == 3 {
			content = long
		}
		if _, err := m.StoreMessage(ctx, "conv-long", llm.RoleUser, content, "", 1, 0, 0); err != nil {
			t.Fatalf("StoreMessage returned unexpected error: %v", err)
		}
	}

	if _, err := m.Compress(ctx, "conv-long", 0.5); err != nil {
		t.Fatalf("Compress returned unexpected error: %v", err)
	}

	listed, _ := s.List(ctx, "conv-long")
	want := "[COMPRESSED] " + long[:200] + "..."
	if listed[3].Content != want {
		t.Errorf("long message summary = %q, want first 200 chars with ellipsis", listed[3].Content)
	}
	// Short middle messages fit the budget and keep their text verbatim.
	if listed[2].Content != "[COMPRESSED] short 2" {
		t.Errorf("short message summary = %q", listed[2].Content)
	}
}

func TestCompressCustomSummarizer(t *testing.T) {
	m, s := newTestManager(t, WithSummarizer(func(string) string { return "gist" }))
	storeN(t, m, "conv-custom", 6)

	if _, err := m.Compress(context.Background(), "conv-custom", 0.3); err != nil {
		t.Fatalf("Compress returned unexpected error: %v", err)
	}

	listed, _ := s.List(context.Background(), "conv-custom")
	for i := 2; i < 4; i++ {
		if listed[i].Content != "[COMPRESSED] gist" {
			t.Errorf("message %d = %q, want custom summary", i, listed[i].Content)
		}
	}
}

func TestCosine(t *testing.T) {
	v := []float32{1, 2, 3}
	if sim := Cosine(v, v); math.Abs(sim-1) > 1e-9 {
		t.Errorf("Cosine(v, v) = %v, want 1", sim)
	}

	zero := []float32{0, 0, 0}
	if sim := Cosine(v, zero); sim != 0 {
		t.Errorf("Cosine with zero vector = %v, want exactly 0", sim)
	}

	a := []float32{1, 0}
	b := []float32{0, 1}
	if sim := Cosine(a, b); sim != 0 {
		t.Errorf("Cosine of orthogonal vectors = %v, want 0", sim)
	}

	if sim := Cosine([]float32{1}, []float32{1, 2}); sim != 0 {
		t.Errorf("Cosine of mismatched lengths = %v, want 0", sim)
	}
}

func TestSearchRankingAndTies(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.StoreMessage(ctx, "conv-s", llm.RoleUser, "completely unrelated topic", "", 1, 0, 0); err != nil {
		t.Fatal(err)
	}
	first, err := m.StoreMessage(ctx, "conv-s", llm.RoleUser, "refund policy details", "", 1, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.StoreMessage(ctx, "conv-s", llm.RoleUser, "refund policy details", "", 1, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	results, err := m.Search(ctx, "refund policy details", "conv-s", 10)
	if err != nil {
		t.Fatalf("Search returned unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Search returned %d results, want 3", len(results))
	}

	// Both exact matches outrank the unrelated message; the tie between them
	// goes to the earlier message.
	if results[0].ID != first.ID {
		t.Errorf("results[0].ID = %s, want earlier exact match %s", results[0].ID, first.ID)
	}
	if results[1].ID != second.ID {
		t.Errorf("results[1].ID = %s, want later exact match %s", results[1].ID, second.ID)
	}
	if results[2].Content != "completely unrelated topic" {
		t.Errorf("results[2] = %q, want the unrelated message last", results[2].Content)
	}
}

func TestSearchScopedToConversation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := m.StoreMessage(ctx, "conv-42", llm.RoleUser,
			fmt.Sprintf("refund policy question %d", i), "", 1, 0, 0); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 4; i++ {
		if _, err := m.StoreMessage(ctx, "conv-other", llm.RoleUser,
			"refund policy elsewhere", "", 1, 0, 0); err != nil {
			t.Fatal(err)
		}
	}

	results, err := m.Search(ctx, "refund policy", "conv-42", 3)
	if err != nil {
		t.Fatalf("Search returned unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Search returned %d results, want exactly 3", len(results))
	}
	for _, r := range results {
		if r.ConversationID != "conv-42" {
			t.Errorf("result from conversation %q, want conv-42", r.ConversationID)
		}
	}
}

func TestSearchExcludesMessagesWithoutEmbedding(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	// Bypass the engine to store a message with no embedding.
	if err := s.Append(ctx, &store.Message{
		ConversationID: "conv-ne", Role: "user", Content: "refund policy",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.StoreMessage(ctx, "conv-ne", llm.RoleUser, "refund policy", "", 1, 0, 0); err != nil {
		t.Fatal(err)
	}

	results, err := m.Search(ctx, "refund policy", "conv-ne", 10)
	if err != nil {
		t.Fatalf("Search returned unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search returned %d results, want 1 (embedding-less excluded)", len(results))
	}
	if len(results[0].Embedding) == 0 {
		t.Error("returned message should carry an embedding")
	}
}

func TestSearchAcrossAllConversations(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.StoreMessage(ctx, "conv-x", llm.RoleUser, "shipping times", "", 1, 0, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.StoreMessage(ctx, "conv-y", llm.RoleUser, "shipping times", "", 1, 0, 0); err != nil {
		t.Fatal(err)
	}

	results, err := m.Search(ctx, "shipping times", "", 10)
	if err != nil {
		t.Fatalf("Search returned unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("unscoped search returned %d results, want 2", len(results))
	}
}

func TestSummarizeConversation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.StoreMessage(ctx, "conv-sum", llm.RoleUser, "question", "", 10, 0.01, 0.001); err != nil {
		t.Fatal(err)
	}
	if _, err := m.StoreMessage(ctx, "conv-sum", llm.RoleAssistant, "answer", "gpt-4", 30, 0.05, 0.004); err != nil {
		t.Fatal(err)
	}
	if _, err := m.StoreMessage(ctx, "conv-sum", llm.RoleAssistant, "more", "claude-3-sonnet", 20, 0.02, 0.002); err != nil {
		t.Fatal(err)
	}

	summary, err := m.SummarizeConversation(ctx, "conv-sum")
	if err != nil {
		t.Fatalf("SummarizeConversation returned unexpected error: %v", err)
	}

	if summary.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", summary.MessageCount)
	}
	if summary.TotalTokens != 60 {
		t.Errorf("TotalTokens = %d, want 60", summary.TotalTokens)
	}
	if math.Abs(summary.TotalCost-0.08) > 1e-9 {
		t.Errorf("TotalCost = %v, want 0.08", summary.TotalCost)
	}
	if math.Abs(summary.TotalCarbon-0.007) > 1e-9 {
		t.Errorf("TotalCarbon = %v, want 0.007", summary.TotalCarbon)
	}
	wantModels := []string{"claude-3-sonnet", "gpt-4"}
	if len(summary.ModelsUsed) != 2 || summary.ModelsUsed[0] != wantModels[0] || summary.ModelsUsed[1] != wantModels[1] {
		t.Errorf("ModelsUsed = %v, want %v", summary.ModelsUsed, wantModels)
	}
	if summary.CreatedAt.IsZero() || summary.LastUpdated.IsZero() {
		t.Error("timestamps not populated")
	}
}

func TestSummarizeConversationNotFound(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.SummarizeConversation(context.Background(), "missing")
	if !errors.Is(err, store.ErrConversationNotFound) {
		t.Errorf("error = %v, want ErrConversationNotFound", err)
	}
}
