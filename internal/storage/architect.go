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

// CreateArchitectTool inserts a new tool in draft status.
func (db *DB) CreateArchitectTool(ctx context.Context, tool model.ArchitectTool) (model.ArchitectTool, error) {
	if tool.ID == uuid.Nil {
		tool.ID = uuid.New()
	}
	tool.Status = model.ToolStatusDraft
	now := time.Now().UTC()
	tool.CreatedAt = now
	tool.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO architect_tools (id, name, description, is_parallel, status, creator_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tool.ID, tool.Name, tool.Description, tool.IsParallel, string(tool.Status),
		tool.CreatorID, tool.CreatedAt, tool.UpdatedAt,
	)
	if err != nil {
		return model.ArchitectTool{}, fmt.Errorf("storage: create architect tool: %w", mapConstraintErr(err))
	}
	return tool, nil
}

// GetArchitectTool retrieves a tool by ID.
func (db *DB) GetArchitectTool(ctx context.Context, id uuid.UUID) (model.ArchitectTool, error) {
	var t model.ArchitectTool
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, description, is_parallel, status, creator_id, created_at, updated_at
		 FROM architect_tools WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Description, &t.IsParallel, &t.Status, &t.CreatorID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ArchitectTool{}, fmt.Errorf("storage: architect tool %s: %w", id, ErrNotFound)
		}
		return model.ArchitectTool{}, fmt.Errorf("storage: get architect tool: %w", err)
	}
	return t, nil
}

// ListArchitectTools returns tools newest-first, optionally filtered by status.
func (db *DB) ListArchitectTools(ctx context.Context, status *model.ToolStatus) ([]model.ArchitectTool, error) {
	query := `SELECT id, name, description, is_parallel, status, creator_id, created_at, updated_at
		 FROM architect_tools`
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list architect tools: %w", err)
	}
	defer rows.Close()

	var tools []model.ArchitectTool
	for rows.Next() {
		var t model.ArchitectTool
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.IsParallel, &t.Status, &t.CreatorID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan architect tool: %w", err)
		}
		tools = append(tools, t)
	}
	return tools, rows.Err()
}

// UpdateArchitectTool replaces a tool's mutable fields and sets its status.
// Setting the status here is what demotes an approved tool back to draft
// when it is edited.
func (db *DB) UpdateArchitectTool(ctx context.Context, tool model.ArchitectTool) (model.ArchitectTool, error) {
	var t model.ArchitectTool
	err := db.pool.QueryRow(ctx,
		`UPDATE architect_tools
		 SET name = $1, description = $2, is_parallel = $3, status = $4, updated_at = now()
		 WHERE id = $5
		 RETURNING id, name, description, is_parallel, status, creator_id, created_at, updated_at`,
		tool.Name, tool.Description, tool.IsParallel, string(tool.Status), tool.ID,
	).Scan(&t.ID, &t.Name, &t.Description, &t.IsParallel, &t.Status, &t.CreatorID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ArchitectTool{}, fmt.Errorf("storage: architect tool %s: %w", tool.ID, ErrNotFound)
		}
		return model.ArchitectTool{}, fmt.Errorf("storage: update architect tool: %w", err)
	}
	return t, nil
}

// UpdateArchitectToolStatus sets only a tool's lifecycle status.
func (db *DB) UpdateArchitectToolStatus(ctx context.Context, id uuid.UUID, status model.ToolStatus) (model.ArchitectTool, error) {
	var t model.ArchitectTool
	err := db.pool.QueryRow(ctx,
		`UPDATE architect_tools SET status = $1, updated_at = now() WHERE id = $2
		 RETURNING id, name, description, is_parallel, status, creator_id, created_at, updated_at`,
		string(status), id,
	).Scan(&t.ID, &t.Name, &t.Description, &t.IsParallel, &t.Status, &t.CreatorID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ArchitectTool{}, fmt.Errorf("storage: architect tool %s: %w", id, ErrNotFound)
		}
		return model.ArchitectTool{}, fmt.Errorf("storage: update architect tool status: %w", err)
	}
	return t, nil
}

// DeleteArchitectTool removes a tool. Input fields and chain prompts
// cascade.
func (db *DB) DeleteArchitectTool(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM architect_tools WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("storage: delete architect tool: %w", mapConstraintErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: architect tool %s: %w", id, ErrNotFound)
	}
	return nil
}

// CreateInputField inserts a new input field for a tool.
func (db *DB) CreateInputField(ctx context.Context, field model.InputField) (model.InputField, error) {
	if field.ID == uuid.Nil {
		field.ID = uuid.New()
	}
	field.CreatedAt = time.Now().UTC()
	if field.Options == nil {
		field.Options = []model.InputFieldOption{}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO tool_input_fields (id, tool_id, name, field_type, options, position, required, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		field.ID, field.ToolID, field.Name, string(field.FieldType), field.Options,
		field.Position, field.Required, field.CreatedAt,
	)
	if err != nil {
		return model.InputField{}, fmt.Errorf("storage: create input field: %w", mapConstraintErr(err))
	}
	return field, nil
}

// UpdateInputField replaces an input field's mutable attributes.
func (db *DB) UpdateInputField(ctx context.Context, field model.InputField) (model.InputField, error) {
	if field.Options == nil {
		field.Options = []model.InputFieldOption{}
	}
	var f model.InputField
	err := db.pool.QueryRow(ctx,
		`UPDATE tool_input_fields
		 SET name = $1, field_type = $2, options = $3, position = $4, required = $5
		 WHERE id = $6 AND tool_id = $7
		 RETURNING id, tool_id, name, field_type, options, position, required, created_at`,
		field.Name, string(field.FieldType), field.Options, field.Position, field.Required,
		field.ID, field.ToolID,
	).Scan(&f.ID, &f.ToolID, &f.Name, &f.FieldType, &f.Options, &f.Position, &f.Required, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.InputField{}, fmt.Errorf("storage: input field %s: %w", field.ID, ErrNotFound)
		}
		return model.InputField{}, fmt.Errorf("storage: update input field: %w", mapConstraintErr(err))
	}
	return f, nil
}

// DeleteInputField removes an input field from a tool.
func (db *DB) DeleteInputField(ctx context.Context, toolID, fieldID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM tool_input_fields WHERE id = $1 AND tool_id = $2`, fieldID, toolID,
	)
	if err != nil {
		return fmt.Errorf("storage: delete input field: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: input field %s: %w", fieldID, ErrNotFound)
	}
	return nil
}

// ListInputFields returns a tool's input fields ordered by position.
func (db *DB) ListInputFields(ctx context.Context, toolID uuid.UUID) ([]model.InputField, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, tool_id, name, field_type, options, position, required, created_at
		 FROM tool_input_fields WHERE tool_id = $1 ORDER BY position ASC`, toolID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list input fields: %w", err)
	}
	defer rows.Close()

	var fields []model.InputField
	for rows.Next() {
		var f model.InputField
		if err := rows.Scan(&f.ID, &f.ToolID, &f.Name, &f.FieldType, &f.Options, &f.Position, &f.Required, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan input field: %w", err)
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

// CreateChainPrompt inserts a new chain prompt for a tool.
func (db *DB) CreateChainPrompt(ctx context.Context, prompt model.ChainPrompt) (model.ChainPrompt, error) {
	if prompt.ID == uuid.Nil {
		prompt.ID = uuid.New()
	}
	now := time.Now().UTC()
	prompt.CreatedAt = now
	prompt.UpdatedAt = now
	if prompt.InputMapping == nil {
		prompt.InputMapping = map[string]string{}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO chain_prompts (id, tool_id, name, content, system_context, model_id, position, parallel_group, input_mapping, timeout_seconds, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		prompt.ID, prompt.ToolID, prompt.Name, prompt.Content, prompt.SystemContext,
		prompt.ModelID, prompt.Position, prompt.ParallelGroup, prompt.InputMapping,
		prompt.TimeoutSeconds, prompt.CreatedAt, prompt.UpdatedAt,
	)
	if err != nil {
		return model.ChainPrompt{}, fmt.Errorf("storage: create chain prompt: %w", mapConstraintErr(err))
	}
	return prompt, nil
}

// UpdateChainPrompt replaces a chain prompt's mutable attributes.
func (db *DB) UpdateChainPrompt(ctx context.Context, prompt model.ChainPrompt) (model.ChainPrompt, error) {
	if prompt.InputMapping == nil {
		prompt.InputMapping = map[string]string{}
	}
	var p model.ChainPrompt
	err := db.pool.QueryRow(ctx,
		`UPDATE chain_prompts
		 SET name = $1, content = $2, system_context = $3, model_id = $4, position = $5,
		     parallel_group = $6, input_mapping = $7, timeout_seconds = $8, updated_at = now()
		 WHERE id = $9 AND tool_id = $10
		 RETURNING id, tool_id, name, content, system_context, model_id, position, parallel_group, input_mapping, timeout_seconds, created_at, updated_at`,
		prompt.Name, prompt.Content, prompt.SystemContext, prompt.ModelID, prompt.Position,
		prompt.ParallelGroup, prompt.InputMapping, prompt.TimeoutSeconds,
		prompt.ID, prompt.ToolID,
	).Scan(&p.ID, &p.ToolID, &p.Name, &p.Content, &p.SystemContext, &p.ModelID, &p.Position,
		&p.ParallelGroup, &p.InputMapping, &p.TimeoutSeconds, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ChainPrompt{}, fmt.Errorf("storage: chain prompt %s: %w", prompt.ID, ErrNotFound)
		}
		return model.ChainPrompt{}, fmt.Errorf("storage: update chain prompt: %w", mapConstraintErr(err))
	}
	return p, nil
}

// DeleteChainPrompt removes a chain prompt from a tool.
func (db *DB) DeleteChainPrompt(ctx context.Context, toolID, promptID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM chain_prompts WHERE id = $1 AND tool_id = $2`, promptID, toolID,
	)
	if err != nil {
		return fmt.Errorf("storage: delete chain prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: chain prompt %s: %w", promptID, ErrNotFound)
	}
	return nil
}

// ListChainPrompts returns a tool's chain prompts ordered by position.
func (db *DB) ListChainPrompts(ctx context.Context, toolID uuid.UUID) ([]model.ChainPrompt, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, tool_id, name, content, system_context, model_id, position, parallel_group, input_mapping, timeout_seconds, created_at, updated_at
		 FROM chain_prompts WHERE tool_id = $1 ORDER BY position ASC`, toolID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list chain prompts: %w", err)
	}
	defer rows.Close()

	var prompts []model.ChainPrompt
	for rows.Next() {
		var p model.ChainPrompt
		if err := rows.Scan(&p.ID, &p.ToolID, &p.Name, &p.Content, &p.SystemContext, &p.ModelID,
			&p.Position, &p.ParallelGroup, &p.InputMapping, &p.TimeoutSeconds, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan chain prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}
