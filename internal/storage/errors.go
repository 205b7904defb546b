package storage

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrConflict is returned when an insert or update violates a uniqueness
// or foreign-key constraint.
var ErrConflict = errors.New("storage: conflict")

// Postgres error codes. See https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// mapConstraintErr converts Postgres constraint violations to ErrConflict,
// leaving other errors untouched.
func mapConstraintErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation || pgErr.Code == pgForeignKeyViolation {
			return ErrConflict
		}
	}
	return err
}
