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

// CreateExecution inserts a new pending execution record.
func (db *DB) CreateExecution(ctx context.Context, exec model.ToolExecution) (model.ToolExecution, error) {
	if exec.ID == uuid.Nil {
		exec.ID = uuid.New()
	}
	exec.Status = model.ExecutionPending
	exec.StartedAt = time.Now().UTC()
	if exec.InputValues == nil {
		exec.InputValues = map[string]any{}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO tool_executions (id, tool_id, user_id, status, input_values, error, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		exec.ID, exec.ToolID, exec.UserID, string(exec.Status), exec.InputValues,
		exec.Error, exec.StartedAt, exec.CompletedAt,
	)
	if err != nil {
		return model.ToolExecution{}, fmt.Errorf("storage: create execution: %w", mapConstraintErr(err))
	}
	return exec, nil
}

// GetExecution retrieves an execution by ID.
func (db *DB) GetExecution(ctx context.Context, id uuid.UUID) (model.ToolExecution, error) {
	var e model.ToolExecution
	err := db.pool.QueryRow(ctx,
		`SELECT id, tool_id, user_id, status, input_values, error, started_at, completed_at
		 FROM tool_executions WHERE id = $1`, id,
	).Scan(&e.ID, &e.ToolID, &e.UserID, &e.Status, &e.InputValues, &e.Error, &e.StartedAt, &e.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ToolExecution{}, fmt.Errorf("storage: execution %s: %w", id, ErrNotFound)
		}
		return model.ToolExecution{}, fmt.Errorf("storage: get execution: %w", err)
	}
	return e, nil
}

// MarkExecutionRunning transitions a pending execution to running.
func (db *DB) MarkExecutionRunning(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE tool_executions SET status = $1 WHERE id = $2 AND status = $3`,
		string(model.ExecutionRunning), id, string(model.ExecutionPending),
	)
	if err != nil {
		return fmt.Errorf("storage: mark execution running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: execution %s not pending: %w", id, ErrConflict)
	}
	return nil
}

// FinishExecution transitions an execution to a terminal status. execErr is
// recorded verbatim when non-nil.
func (db *DB) FinishExecution(ctx context.Context, id uuid.UUID, status model.ExecutionStatus, execErr *string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE tool_executions SET status = $1, error = $2, completed_at = now() WHERE id = $3`,
		string(status), execErr, id,
	)
	if err != nil {
		return fmt.Errorf("storage: finish execution: %w", err)
	}
	return nil
}

// InsertPromptResult records a terminal prompt result row.
func (db *DB) InsertPromptResult(ctx context.Context, res model.PromptResult) (model.PromptResult, error) {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	if res.ResolvedInput == nil {
		res.ResolvedInput = map[string]string{}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO prompt_results (id, execution_id, prompt_id, status, resolved_input, output, error, error_kind, started_at, completed_at, elapsed_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		res.ID, res.ExecutionID, res.PromptID, string(res.Status), res.ResolvedInput,
		res.Output, res.Error, res.ErrorKind, res.StartedAt, res.CompletedAt, res.ElapsedMs,
	)
	if err != nil {
		return model.PromptResult{}, fmt.Errorf("storage: insert prompt result: %w", mapConstraintErr(err))
	}
	return res, nil
}

// ListPromptResults returns an execution's prompt results ordered by the
// prompt position they ran for.
func (db *DB) ListPromptResults(ctx context.Context, executionID uuid.UUID) ([]model.PromptResult, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT r.id, r.execution_id, r.prompt_id, r.status, r.resolved_input, r.output, r.error, r.error_kind, r.started_at, r.completed_at, r.elapsed_ms
		 FROM prompt_results r
		 JOIN chain_prompts p ON p.id = r.prompt_id
		 WHERE r.execution_id = $1 ORDER BY p.position ASC`, executionID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list prompt results: %w", err)
	}
	defer rows.Close()

	var results []model.PromptResult
	for rows.Next() {
		var r model.PromptResult
		if err := rows.Scan(&r.ID, &r.ExecutionID, &r.PromptID, &r.Status, &r.ResolvedInput,
			&r.Output, &r.Error, &r.ErrorKind, &r.StartedAt, &r.CompletedAt, &r.ElapsedMs); err != nil {
			return nil, fmt.Errorf("storage: scan prompt result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
