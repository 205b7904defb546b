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

// CreateUser inserts a new user.
func (db *DB) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO users (id, user_id, name, email, role, api_key_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.UserID, user.Name, user.Email, string(user.Role),
		user.APIKeyHash, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return model.User{}, fmt.Errorf("storage: create user: %w", mapConstraintErr(err))
	}
	return user, nil
}

// GetUserByUserID retrieves a user by external user_id.
func (db *DB) GetUserByUserID(ctx context.Context, userID string) (model.User, error) {
	var u model.User
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, name, email, role, api_key_hash, created_at, updated_at
		 FROM users WHERE user_id = $1`, userID,
	).Scan(&u.ID, &u.UserID, &u.Name, &u.Email, &u.Role, &u.APIKeyHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, fmt.Errorf("storage: user %s: %w", userID, ErrNotFound)
		}
		return model.User{}, fmt.Errorf("storage: get user: %w", err)
	}
	return u, nil
}

// GetUserByID retrieves a user by internal UUID.
func (db *DB) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	var u model.User
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, name, email, role, api_key_hash, created_at, updated_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.UserID, &u.Name, &u.Email, &u.Role, &u.APIKeyHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, fmt.Errorf("storage: user %s: %w", id, ErrNotFound)
		}
		return model.User{}, fmt.Errorf("storage: get user by id: %w", err)
	}
	return u, nil
}

// ListUsers returns users with pagination.
// limit is clamped to [1, 1000] with a default of 200; offset must be non-negative.
func (db *DB) ListUsers(ctx context.Context, limit, offset int) ([]model.User, error) {
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
		`SELECT id, user_id, name, email, role, api_key_hash, created_at, updated_at
		 FROM users ORDER BY created_at ASC LIMIT $1 OFFSET $2`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.UserID, &u.Name, &u.Email, &u.Role, &u.APIKeyHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserRole sets a user's role and returns the updated user.
func (db *DB) UpdateUserRole(ctx context.Context, userID string, role model.Role) (model.User, error) {
	var u model.User
	err := db.pool.QueryRow(ctx,
		`UPDATE users SET role = $1, updated_at = now()
		 WHERE user_id = $2
		 RETURNING id, user_id, name, email, role, api_key_hash, created_at, updated_at`,
		string(role), userID,
	).Scan(&u.ID, &u.UserID, &u.Name, &u.Email, &u.Role, &u.APIKeyHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, fmt.Errorf("storage: user %s: %w", userID, ErrNotFound)
		}
		return model.User{}, fmt.Errorf("storage: update user role: %w", err)
	}
	return u, nil
}

// CountUsers returns the number of registered users.
func (db *DB) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("storage: count users: %w", err)
	}
	return count, nil
}
