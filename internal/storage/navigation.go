package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/psd401/toolhub/internal/model"
)

const navigationColumns = `id, label, icon, link, description, type, parent_id, tool, requires_role, position, is_active, created_at, updated_at`

func scanNavigationItem(row pgx.Row) (model.NavigationItem, error) {
	var n model.NavigationItem
	err := row.Scan(
		&n.ID, &n.Label, &n.Icon, &n.Link, &n.Description, &n.Type,
		&n.ParentID, &n.Tool, &n.RequiresRole, &n.Position, &n.IsActive,
		&n.CreatedAt, &n.UpdatedAt,
	)
	return n, err
}

// CreateNavigationItem inserts a new navigation item. The caller is
// responsible for having derived the slug ID already.
func (db *DB) CreateNavigationItem(ctx context.Context, item model.NavigationItem) (model.NavigationItem, error) {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO navigation_items (id, label, icon, link, description, type, parent_id, tool, requires_role, position, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		item.ID, item.Label, item.Icon, item.Link, item.Description, string(item.Type),
		item.ParentID, item.Tool, item.RequiresRole, item.Position, item.IsActive,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return model.NavigationItem{}, fmt.Errorf("storage: create navigation item: %w", mapConstraintErr(err))
	}
	return item, nil
}

// UpdateNavigationItem replaces all mutable fields of an item. The slug ID
// is never re-derived from the label.
func (db *DB) UpdateNavigationItem(ctx context.Context, item model.NavigationItem) (model.NavigationItem, error) {
	n, err := scanNavigationItem(db.pool.QueryRow(ctx,
		`UPDATE navigation_items
		 SET label = $1, icon = $2, link = $3, description = $4, type = $5,
		     parent_id = $6, tool = $7, requires_role = $8, position = $9,
		     is_active = $10, updated_at = now()
		 WHERE id = $11
		 RETURNING `+navigationColumns,
		item.Label, item.Icon, item.Link, item.Description, string(item.Type),
		item.ParentID, item.Tool, item.RequiresRole, item.Position, item.IsActive,
		item.ID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.NavigationItem{}, fmt.Errorf("storage: navigation item %s: %w", item.ID, ErrNotFound)
		}
		return model.NavigationItem{}, fmt.Errorf("storage: update navigation item: %w", mapConstraintErr(err))
	}
	return n, nil
}

// GetNavigationItem retrieves an item by slug.
func (db *DB) GetNavigationItem(ctx context.Context, id string) (model.NavigationItem, error) {
	n, err := scanNavigationItem(db.pool.QueryRow(ctx,
		`SELECT `+navigationColumns+` FROM navigation_items WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.NavigationItem{}, fmt.Errorf("storage: navigation item %s: %w", id, ErrNotFound)
		}
		return model.NavigationItem{}, fmt.Errorf("storage: get navigation item: %w", err)
	}
	return n, nil
}

// ListNavigationItems returns items ordered by position then label.
// When activeOnly is true, inactive items are excluded.
func (db *DB) ListNavigationItems(ctx context.Context, activeOnly bool) ([]model.NavigationItem, error) {
	query := `SELECT ` + navigationColumns + ` FROM navigation_items`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY position ASC, label ASC`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("storage: list navigation items: %w", err)
	}
	defer rows.Close()

	var items []model.NavigationItem
	for rows.Next() {
		n, err := scanNavigationItem(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan navigation item: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// DeleteNavigationItem removes an item by slug.
func (db *DB) DeleteNavigationItem(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM navigation_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("storage: delete navigation item: %w", mapConstraintErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: navigation item %s: %w", id, ErrNotFound)
	}
	return nil
}
