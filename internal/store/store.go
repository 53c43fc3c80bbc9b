// Package store defines the durable message store consumed by the memory
// engine, with in-memory, SQLite, and Postgres backends.
package store

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Sentinel errors. Callers check them with errors.Is.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
)

// Message is one unit of conversational memory. Identity (ID, ConversationID,
// CreatedAt) is immutable once assigned; only Content, Compressed, and
// CompressionRatio may change afterwards, and only through UpdateBatch.
// Embedding always reflects the original pre-compression content.
type Message struct {
	ID               string    `json:"id"`
	ConversationID   string    `json:"conversation_id"`
	Role             string    `json:"role"` // "system", "user", "assistant"
	Content          string    `json:"content"`
	ModelUsed        string    `json:"model_used,omitempty"` // empty for user messages
	TokenCount       int       `json:"token_count"`
	Cost             float64   `json:"cost"`
	CarbonFootprint  float64   `json:"carbon_footprint"`
	Embedding        []float32 `json:"embedding,omitempty"`
	Compressed       bool      `json:"compressed"`
	CompressionRatio float64   `json:"compression_ratio,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Conversation carries the running aggregates maintained incrementally as
// messages are appended. Lifecycle is owned by the calling layer; the engine
// reads the identifier and updates the aggregate fields.
type Conversation struct {
	ID              string    `json:"id"`
	CurrentModel    string    `json:"current_model,omitempty"`
	TotalTokens     int       `json:"total_tokens"`
	EstimatedCost   float64   `json:"estimated_cost"`
	EstimatedCarbon float64   `json:"estimated_carbon"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Store is the collaborator contract the engine depends on. Conversations
// are independent units of concurrency: implementations must make Append and
// UpdateBatch atomic per conversation, but need no cross-conversation
// coordination.
type Store interface {
	// CreateConversation registers a conversation container.
	CreateConversation(ctx context.Context, id string) (*Conversation, error)

	// Conversation returns a conversation's aggregates, or
	// ErrConversationNotFound.
	Conversation(ctx context.Context, id string) (*Conversation, error)

	// Append stores a new message, assigning its ID and CreatedAt, and folds
	// its accounting fields into the conversation aggregates. The
	// conversation is created implicitly if absent.
	Append(ctx context.Context, msg *Message) error

	// Recent returns up to limit messages of a conversation, newest first.
	// A missing conversation yields an empty slice, not an error.
	Recent(ctx context.Context, conversationID string, limit int) ([]Message, error)

	// List returns all messages of a conversation in creation order.
	List(ctx context.Context, conversationID string) ([]Message, error)

	// All returns every stored message in creation order.
	All(ctx context.Context) ([]Message, error)

	// UpdateBatch rewrites Content, Compressed, and CompressionRatio for the
	// given messages. Either every update applies or none does; a missing
	// message aborts the whole batch with ErrMessageNotFound.
	UpdateBatch(ctx context.Context, msgs []Message) error
}

// Message IDs are ULIDs so lexicographic ID order is creation order even for
// messages stored within the same millisecond.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewMessageID mints a message ID for the given creation time.
func NewMessageID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return "msg_" + ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
