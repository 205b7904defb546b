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

// CreateDocument records uploaded document metadata.
func (db *DB) CreateDocument(ctx context.Context, doc model.Document) (model.Document, error) {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = time.Now().UTC()

	_, err := db.pool.Exec(ctx,
		`INSERT INTO documents (id, user_id, conversation_id, name, type, url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.UserID, doc.ConversationID, doc.Name, doc.Type, doc.URL, doc.CreatedAt,
	)
	if err != nil {
		return model.Document{}, fmt.Errorf("storage: create document: %w", mapConstraintErr(err))
	}
	return doc, nil
}

// GetDocument retrieves a document by ID.
func (db *DB) GetDocument(ctx context.Context, id uuid.UUID) (model.Document, error) {
	var d model.Document
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, conversation_id, name, type, url, created_at
		 FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.UserID, &d.ConversationID, &d.Name, &d.Type, &d.URL, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Document{}, fmt.Errorf("storage: document %s: %w", id, ErrNotFound)
		}
		return model.Document{}, fmt.Errorf("storage: get document: %w", err)
	}
	return d, nil
}

// LinkDocument attaches a document to a conversation. Ownership is checked
// at the handler boundary; here only existence matters.
func (db *DB) LinkDocument(ctx context.Context, docID, conversationID uuid.UUID) (model.Document, error) {
	var d model.Document
	err := db.pool.QueryRow(ctx,
		`UPDATE documents SET conversation_id = $1 WHERE id = $2
		 RETURNING id, user_id, conversation_id, name, type, url, created_at`,
		conversationID, docID,
	).Scan(&d.ID, &d.UserID, &d.ConversationID, &d.Name, &d.Type, &d.URL, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Document{}, fmt.Errorf("storage: document %s: %w", docID, ErrNotFound)
		}
		return model.Document{}, fmt.Errorf("storage: link document: %w", mapConstraintErr(err))
	}
	return d, nil
}

// ListDocuments returns a user's documents newest-first.
func (db *DB) ListDocuments(ctx context.Context, userID string) ([]model.Document, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, user_id, conversation_id, name, type, url, created_at
		 FROM documents WHERE user_id = $1 ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list documents: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.UserID, &d.ConversationID, &d.Name, &d.Type, &d.URL, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
