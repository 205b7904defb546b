package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/psd401/toolhub/internal/model"
)

// GrantTool records that a role may use a tool. Granting an existing
// pair is a no-op.
func (db *DB) GrantTool(ctx context.Context, role model.Role, tool string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO role_tools (role, tool, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (role, tool) DO NOTHING`,
		string(role), tool, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage: grant tool: %w", err)
	}
	return nil
}

// RevokeTool removes a role's grant for a tool.
func (db *DB) RevokeTool(ctx context.Context, role model.Role, tool string) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM role_tools WHERE role = $1 AND tool = $2`, string(role), tool,
	)
	if err != nil {
		return fmt.Errorf("storage: revoke tool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: grant %s/%s: %w", role, tool, ErrNotFound)
	}
	return nil
}

// ListRoleTools returns all grants, ordered by role then tool.
func (db *DB) ListRoleTools(ctx context.Context) ([]model.RoleTool, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT role, tool, created_at FROM role_tools ORDER BY role, tool`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list role tools: %w", err)
	}
	defer rows.Close()

	var grants []model.RoleTool
	for rows.Next() {
		var g model.RoleTool
		if err := rows.Scan(&g.Role, &g.Tool, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan role tool: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// AnyRoleHasTool reports whether any of the given roles is granted the tool.
func (db *DB) AnyRoleHasTool(ctx context.Context, roles []model.Role, tool string) (bool, error) {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM role_tools WHERE role = ANY($1) AND tool = $2)`,
		names, tool,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: check role tool: %w", err)
	}
	return exists, nil
}
