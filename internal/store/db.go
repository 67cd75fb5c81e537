package store

import (
	"context"
	"database/sql"
)

// DBTX is implemented by both *sql.DB and *sql.Tx, so SQL-backed stores can
// run either on the pool or inside a caller-managed transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
