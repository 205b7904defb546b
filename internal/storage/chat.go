package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/psd401/toolhub/internal/model"
)

// CreateConversation inserts a new conversation.
func (db *DB) CreateConversation(ctx context.Context, conv model.Conversation) (model.Conversation, error) {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO conversations (id, user_id, title, model_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		conv.ID, conv.UserID, conv.Title, conv.ModelID, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("storage: create conversation: %w", mapConstraintErr(err))
	}
	return conv, nil
}

// GetConversation retrieves a conversation by ID.
func (db *DB) GetConversation(ctx context.Context, id uuid.UUID) (model.Conversation, error) {
	var c model.Conversation
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, title, model_id, created_at, updated_at
		 FROM conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.ModelID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Conversation{}, fmt.Errorf("storage: conversation %s: %w", id, ErrNotFound)
		}
		return model.Conversation{}, fmt.Errorf("storage: get conversation: %w", err)
	}
	return c, nil
}

// ListConversations returns a user's conversations, most recently updated first.
func (db *DB) ListConversations(ctx context.Context, userID string, limit, offset int) ([]model.Conversation, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, user_id, title, model_id, created_at, updated_at
		 FROM conversations WHERE user_id = $1
		 ORDER BY updated_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list conversations: %w", err)
	}
	defer rows.Close()

	var convs []model.Conversation
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.ModelID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan conversation: %w", err)
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// CreateMessage appends a message to a conversation and bumps the
// conversation's updated_at, atomically.
func (db *DB) CreateMessage(ctx context.Context, msg model.Message) (model.Message, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = time.Now().UTC()

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Message{}, fmt.Errorf("storage: begin create message tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.CreatedAt,
	); err != nil {
		return model.Message{}, fmt.Errorf("storage: create message: %w", mapConstraintErr(err))
	}

	if _, err := tx.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1`, msg.ConversationID,
	); err != nil {
		return model.Message{}, fmt.Errorf("storage: touch conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Message{}, fmt.Errorf("storage: commit create message tx: %w", err)
	}
	return msg, nil
}

// ListMessages returns a conversation's messages oldest-first.
func (db *DB) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]model.Message, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
