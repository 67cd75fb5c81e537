package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/reigh-app/reigh-api/internal/store"
)

// PostgreSQL error codes
const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
	notNullViolationCode    = "23502"
	invalidTextRepCode      = "22P02"
)

// MapError maps a database error to the matching store sentinel, keeping the
// original error in the chain.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return fmt.Errorf("%w: %w", store.ErrDuplicate, err)
		case foreignKeyViolationCode:
			return fmt.Errorf("%w: foreign key violation (%s): %w",
				store.ErrInvalidEntity, pgErr.ConstraintName, err)
		case checkViolationCode:
			return fmt.Errorf("%w: check constraint violation (%s): %w",
				store.ErrInvalidEntity, pgErr.ConstraintName, err)
		case notNullViolationCode:
			return fmt.Errorf("%w: not null violation (%s): %w",
				store.ErrInvalidEntity, pgErr.ColumnName, err)
		case invalidTextRepCode:
			return fmt.Errorf("%w: invalid input: %w", store.ErrInvalidEntity, err)
		}
	}

	return err
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// IsUniqueViolationOf reports whether err violates the named constraint.
func IsUniqueViolationOf(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode && pgErr.ConstraintName == constraint
}
