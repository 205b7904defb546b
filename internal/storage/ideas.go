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

// ideaColumns selects idea fields plus the derived vote count.
const ideaColumns = `i.id, i.title, i.description, i.priority_level, i.status,
	(SELECT COUNT(*) FROM idea_votes v WHERE v.idea_id = i.id) AS votes,
	i.created_by, i.completed_by, i.created_at, i.completed_at`

func scanIdea(row pgx.Row) (model.Idea, error) {
	var idea model.Idea
	err := row.Scan(
		&idea.ID, &idea.Title, &idea.Description, &idea.PriorityLevel, &idea.Status,
		&idea.Votes, &idea.CreatedBy, &idea.CompletedBy, &idea.CreatedAt, &idea.CompletedAt,
	)
	return idea, err
}

// CreateIdea inserts a new idea with status open and zero votes.
func (db *DB) CreateIdea(ctx context.Context, idea model.Idea) (model.Idea, error) {
	if idea.ID == uuid.Nil {
		idea.ID = uuid.New()
	}
	idea.Status = model.IdeaStatusOpen
	idea.Votes = 0
	idea.CreatedAt = time.Now().UTC()

	_, err := db.pool.Exec(ctx,
		`INSERT INTO ideas (id, title, description, priority_level, status, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		idea.ID, idea.Title, idea.Description, idea.PriorityLevel, idea.Status,
		idea.CreatedBy, idea.CreatedAt,
	)
	if err != nil {
		return model.Idea{}, fmt.Errorf("storage: create idea: %w", mapConstraintErr(err))
	}
	return idea, nil
}

// GetIdea retrieves an idea with its current vote count.
func (db *DB) GetIdea(ctx context.Context, id uuid.UUID) (model.Idea, error) {
	idea, err := scanIdea(db.pool.QueryRow(ctx,
		`SELECT `+ideaColumns+` FROM ideas i WHERE i.id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Idea{}, fmt.Errorf("storage: idea %s: %w", id, ErrNotFound)
		}
		return model.Idea{}, fmt.Errorf("storage: get idea: %w", err)
	}
	return idea, nil
}

// ListIdeas returns ideas newest-first with vote counts.
// limit is clamped to [1, 1000] with a default of 200; offset must be non-negative.
func (db *DB) ListIdeas(ctx context.Context, limit, offset int) ([]model.Idea, error) {
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
		`SELECT `+ideaColumns+` FROM ideas i ORDER BY i.created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list ideas: %w", err)
	}
	defer rows.Close()

	var ideas []model.Idea
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan idea: %w", err)
		}
		ideas = append(ideas, idea)
	}
	return ideas, rows.Err()
}

// VoteIdea records a vote by voterID on an idea. The primary key on
// (idea_id, voter_id) makes repeat votes no-ops; inserted reports whether
// this call added a row. The returned count reflects the state after the
// call either way.
func (db *DB) VoteIdea(ctx context.Context, ideaID uuid.UUID, voterID string) (inserted bool, count int, err error) {
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO idea_votes (idea_id, voter_id, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (idea_id, voter_id) DO NOTHING`,
		ideaID, voterID, time.Now().UTC(),
	)
	if err != nil {
		return false, 0, fmt.Errorf("storage: vote idea: %w", mapConstraintErr(err))
	}
	inserted = tag.RowsAffected() > 0

	err = db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM idea_votes WHERE idea_id = $1`, ideaID,
	).Scan(&count)
	if err != nil {
		return inserted, 0, fmt.Errorf("storage: count votes: %w", err)
	}
	return inserted, count, nil
}

// UpdateIdeaStatus sets an idea's status. When the new status is completed,
// completed_by and completed_at are recorded; moving out of completed
// clears them.
func (db *DB) UpdateIdeaStatus(ctx context.Context, id uuid.UUID, status, actorID string) (model.Idea, error) {
	var completedBy *string
	var completedAt *time.Time
	if status == model.IdeaStatusCompleted {
		now := time.Now().UTC()
		completedBy = &actorID
		completedAt = &now
	}

	idea, err := scanIdea(db.pool.QueryRow(ctx,
		`UPDATE ideas i SET status = $1, completed_by = $2, completed_at = $3
		 WHERE i.id = $4
		 RETURNING `+ideaColumns,
		status, completedBy, completedAt, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Idea{}, fmt.Errorf("storage: idea %s: %w", id, ErrNotFound)
		}
		return model.Idea{}, fmt.Errorf("storage: update idea status: %w", err)
	}
	return idea, nil
}

// CreateIdeaNote inserts a note on an idea.
func (db *DB) CreateIdeaNote(ctx context.Context, note model.IdeaNote) (model.IdeaNote, error) {
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	note.CreatedAt = time.Now().UTC()

	_, err := db.pool.Exec(ctx,
		`INSERT INTO idea_notes (id, idea_id, content, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		note.ID, note.IdeaID, note.Content, note.CreatedBy, note.CreatedAt,
	)
	if err != nil {
		return model.IdeaNote{}, fmt.Errorf("storage: create idea note: %w", mapConstraintErr(err))
	}
	return note, nil
}

// ListIdeaNotes returns an idea's notes oldest-first.
func (db *DB) ListIdeaNotes(ctx context.Context, ideaID uuid.UUID) ([]model.IdeaNote, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, idea_id, content, created_by, created_at
		 FROM idea_notes WHERE idea_id = $1 ORDER BY created_at ASC`, ideaID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list idea notes: %w", err)
	}
	defer rows.Close()

	var notes []model.IdeaNote
	for rows.Next() {
		var n model.IdeaNote
		if err := rows.Scan(&n.ID, &n.IdeaID, &n.Content, &n.CreatedBy, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan idea note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
