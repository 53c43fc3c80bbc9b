package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a Postgres database via pgx. This is the
// multi-process production backend; embeddings are stored as real[].
type PostgresStore struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id               TEXT PRIMARY KEY,
	current_model    TEXT NOT NULL DEFAULT '',
	total_tokens     BIGINT NOT NULL DEFAULT 0,
	estimated_cost   DOUBLE PRECISION NOT NULL DEFAULT 0,
	estimated_carbon DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id                TEXT PRIMARY KEY,
	conversation_id   TEXT NOT NULL REFERENCES conversations(id),
	role              TEXT NOT NULL,
	content           TEXT NOT NULL,
	model_used        TEXT NOT NULL DEFAULT '',
	token_count       BIGINT NOT NULL DEFAULT 0,
	cost              DOUBLE PRECISION NOT NULL DEFAULT 0,
	carbon_footprint  DOUBLE PRECISION NOT NULL DEFAULT 0,
	embedding         REAL[],
	compressed        BOOLEAN NOT NULL DEFAULT FALSE,
	compression_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
`

// OpenPostgres connects to Postgres and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: init schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() { s.pool.Close() }

// CreateConversation registers a conversation container.
func (s *PostgresStore) CreateConversation(ctx context.Context, id string) (*Conversation, error) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, created_at, updated_at) VALUES ($1, $2, $2)
		 ON CONFLICT (id) DO NOTHING`, id, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: create conversation: %w", err)
	}
	return s.Conversation(ctx, id)
}

// Conversation returns a conversation's aggregates.
func (s *PostgresStore) Conversation(ctx context.Context, id string) (*Conversation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, current_model, total_tokens, estimated_cost, estimated_carbon, created_at, updated_at
		 FROM conversations WHERE id = $1`, id)

	var conv Conversation
	err := row.Scan(&conv.ID, &conv.CurrentModel, &conv.TotalTokens,
		&conv.EstimatedCost, &conv.EstimatedCarbon, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("conversation %q: %w", id, ErrConversationNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load conversation: %w", err)
	}
	return &conv, nil
}

// Append stores a new message and updates the conversation aggregates in the
// same transaction.
func (s *PostgresStore) Append(ctx context.Context, msg *Message) error {
	now := time.Now().UTC()
	msg.ID = NewMessageID(now)
	msg.CreatedAt = now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO conversations (id, current_model, total_tokens, estimated_cost, estimated_carbon, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 ON CONFLICT (id) DO UPDATE SET
			current_model    = CASE WHEN EXCLUDED.current_model <> '' THEN EXCLUDED.current_model ELSE conversations.current_model END,
			total_tokens     = conversations.total_tokens + EXCLUDED.total_tokens,
			estimated_cost   = conversations.estimated_cost + EXCLUDED.estimated_cost,
			estimated_carbon = conversations.estimated_carbon + EXCLUDED.estimated_carbon,
			updated_at       = EXCLUDED.updated_at`,
		msg.ConversationID, msg.ModelUsed, msg.TokenCount, msg.Cost, msg.CarbonFootprint, now); err != nil {
		return fmt.Errorf("postgres: update aggregates: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, model_used, token_count, cost, carbon_footprint, embedding, compressed, compression_ratio, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.ModelUsed,
		msg.TokenCount, msg.Cost, msg.CarbonFootprint, msg.Embedding,
		msg.Compressed, msg.CompressionRatio, now); err != nil {
		return fmt.Errorf("postgres: insert message: %w", err)
	}

	return tx.Commit(ctx)
}

const pgMessageColumns = `id, conversation_id, role, content, model_used, token_count, cost, carbon_footprint, embedding, compressed, compression_ratio, created_at`

// Recent returns up to limit messages, newest first.
func (s *PostgresStore) Recent(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	var rows pgx.Rows
	var err error
	if limit > 0 {
		rows, err = s.pool.Query(ctx,
			`SELECT `+pgMessageColumns+` FROM messages WHERE conversation_id = $1 ORDER BY id DESC LIMIT $2`,
			conversationID, limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+pgMessageColumns+` FROM messages WHERE conversation_id = $1 ORDER BY id DESC`,
			conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: recent: %w", err)
	}
	return scanPgMessages(rows)
}

// List returns all messages of a conversation in creation order.
func (s *PostgresStore) List(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgMessageColumns+` FROM messages WHERE conversation_id = $1 ORDER BY id ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	return scanPgMessages(rows)
}

// All returns every stored message in creation order.
func (s *PostgresStore) All(ctx context.Context) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgMessageColumns+` FROM messages ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: all: %w", err)
	}
	return scanPgMessages(rows)
}

// UpdateBatch rewrites compression fields inside a single transaction.
func (s *PostgresStore) UpdateBatch(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, m := range msgs {
		tag, err := tx.Exec(ctx,
			`UPDATE messages SET content = $1, compressed = $2, compression_ratio = $3 WHERE id = $4`,
			m.Content, m.Compressed, m.CompressionRatio, m.ID)
		if err != nil {
			return fmt.Errorf("postgres: update message %s: %w", m.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("message %q: %w", m.ID, ErrMessageNotFound)
		}
	}

	return tx.Commit(ctx)
}

func scanPgMessages(rows pgx.Rows) ([]Message, error) {
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.ModelUsed,
			&m.TokenCount, &m.Cost, &m.CarbonFootprint, &m.Embedding,
			&m.Compressed, &m.CompressionRatio, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
