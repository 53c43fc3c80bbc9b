package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on an embedded SQLite database. Suitable for
// single-process deployments; embeddings are stored as JSON arrays.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id               TEXT PRIMARY KEY,
	current_model    TEXT NOT NULL DEFAULT '',
	total_tokens     INTEGER NOT NULL DEFAULT 0,
	estimated_cost   REAL NOT NULL DEFAULT 0,
	estimated_carbon REAL NOT NULL DEFAULT 0,
	created_at       INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id                TEXT PRIMARY KEY,
	conversation_id   TEXT NOT NULL REFERENCES conversations(id),
	role              TEXT NOT NULL,
	content           TEXT NOT NULL,
	model_used        TEXT NOT NULL DEFAULT '',
	token_count       INTEGER NOT NULL DEFAULT 0,
	cost              REAL NOT NULL DEFAULT 0,
	carbon_footprint  REAL NOT NULL DEFAULT 0,
	embedding         TEXT,
	compressed        INTEGER NOT NULL DEFAULT 0,
	compression_ratio REAL NOT NULL DEFAULT 0,
	created_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
`

// OpenSQLite opens (and if needed initializes) a SQLite-backed store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// modernc's driver serializes access; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// CreateConversation registers a conversation container.
func (s *SQLiteStore) CreateConversation(ctx context.Context, id string) (*Conversation, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, now.UnixNano(), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("sqlite: create conversation: %w", err)
	}
	return s.Conversation(ctx, id)
}

// Conversation returns a conversation's aggregates.
func (s *SQLiteStore) Conversation(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, current_model, total_tokens, estimated_cost, estimated_carbon, created_at, updated_at
		 FROM conversations WHERE id = ?`, id)

	var conv Conversation
	var created, updated int64
	err := row.Scan(&conv.ID, &conv.CurrentModel, &conv.TotalTokens,
		&conv.EstimatedCost, &conv.EstimatedCarbon, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %q: %w", id, ErrConversationNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load conversation: %w", err)
	}
	conv.CreatedAt = time.Unix(0, created).UTC()
	conv.UpdatedAt = time.Unix(0, updated).UTC()
	return &conv, nil
}

// Append stores a new message and updates the conversation aggregates in the
// same transaction.
func (s *SQLiteStore) Append(ctx context.Context, msg *Message) error {
	now := time.Now().UTC()
	msg.ID = NewMessageID(now)
	msg.CreatedAt = now

	var embJSON any
	if msg.Embedding != nil {
		data, err := json.Marshal(msg.Embedding)
		if err != nil {
			return fmt.Errorf("sqlite: encode embedding: %w", err)
		}
		embJSON = string(data)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (id, current_model, total_tokens, estimated_cost, estimated_carbon, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			current_model    = CASE WHEN excluded.current_model != '' THEN excluded.current_model ELSE conversations.current_model END,
			total_tokens     = conversations.total_tokens + excluded.total_tokens,
			estimated_cost   = conversations.estimated_cost + excluded.estimated_cost,
			estimated_carbon = conversations.estimated_carbon + excluded.estimated_carbon,
			updated_at       = excluded.updated_at`,
		msg.ConversationID, msg.ModelUsed, msg.TokenCount, msg.Cost, msg.CarbonFootprint,
		now.UnixNano(), now.UnixNano()); err != nil {
		return fmt.Errorf("sqlite: update aggregates: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, model_used, token_count, cost, carbon_footprint, embedding, compressed, compression_ratio, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.ModelUsed,
		msg.TokenCount, msg.Cost, msg.CarbonFootprint, embJSON,
		msg.Compressed, msg.CompressionRatio, now.UnixNano()); err != nil {
		return fmt.Errorf("sqlite: insert message: %w", err)
	}

	return tx.Commit()
}

const sqliteMessageColumns = `id, conversation_id, role, content, model_used, token_count, cost, carbon_footprint, embedding, compressed, compression_ratio, created_at`

// Recent returns up to limit messages, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats negative LIMIT as unlimited
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteMessageColumns+` FROM messages WHERE conversation_id = ? ORDER BY id DESC LIMIT ?`,
		conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent: %w", err)
	}
	return scanMessages(rows)
}

// List returns all messages of a conversation in creation order.
func (s *SQLiteStore) List(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteMessageColumns+` FROM messages WHERE conversation_id = ? ORDER BY id ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	return scanMessages(rows)
}

// All returns every stored message in creation order.
func (s *SQLiteStore) All(ctx context.Context) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteMessageColumns+` FROM messages ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: all: %w", err)
	}
	return scanMessages(rows)
}

// UpdateBatch rewrites compression fields inside a single transaction.
func (s *SQLiteStore) UpdateBatch(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	for _, m := range msgs {
		res, err := tx.ExecContext(ctx,
			`UPDATE messages SET content = ?, compressed = ?, compression_ratio = ? WHERE id = ?`,
			m.Content, m.Compressed, m.CompressionRatio, m.ID)
		if err != nil {
			return fmt.Errorf("sqlite: update message %s: %w", m.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("message %q: %w", m.ID, ErrMessageNotFound)
		}
	}

	return tx.Commit()
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var embJSON sql.NullString
		var created int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.ModelUsed,
			&m.TokenCount, &m.Cost, &m.CarbonFootprint, &embJSON,
			&m.Compressed, &m.CompressionRatio, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		if embJSON.Valid {
			if err := json.Unmarshal([]byte(embJSON.String), &m.Embedding); err != nil {
				return nil, fmt.Errorf("sqlite: decode embedding for %s: %w", m.ID, err)
			}
		}
		m.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}
