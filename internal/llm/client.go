// Package llm defines the provider adapter abstraction for the memfab engine.
package llm

import (
	"context"
	"time"
)

// Role represents a message sender role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is the normalized message format handed to a model call.
type Message struct {
	Role    Role         `json:"role"`
	Content string       `json:"content"`
	Meta    *MessageMeta `json:"meta,omitempty"`
}

// MessageMeta carries per-message provenance inside a context window.
type MessageMeta struct {
	MessageID  string    `json:"message_id"`
	ModelUsed  string    `json:"model_used,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Compressed bool      `json:"compressed"`
}

// TokenUsage tracks token consumption reported by a provider for one call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns the sum of all token fields.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// ChatRequest contains parameters for a provider chat call.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// ChatResponse contains the provider's response to a chat request.
type ChatResponse struct {
	Content string     `json:"content,omitempty"`
	Usage   TokenUsage `json:"usage"`
}

// Client is the transport interface for provider interactions. Retries and
// timeouts for network calls belong to the transport, not the engine.
type Client interface {
	// Chat sends a request and returns the complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
