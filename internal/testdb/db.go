package testdb

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/reigh-app/reigh-api/internal/ciutil"
	"github.com/reigh-app/reigh-api/internal/platform/postgres"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 5 * time.Second

// Image is the PostgreSQL image started when no external database is configured.
const Image = "postgres:16-alpine"

// Open returns a migrated database that is closed when the test ends.
// Tables are truncated first, so an external database starts empty too.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	dsn := ciutil.TestDatabaseURL(nil)
	if dsn == "" {
		dsn = startContainer(t)
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err, "Failed to open database")
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close database: %v", err)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "Failed to ping database")

	require.NoError(t, postgres.Migrate(context.Background(), db, postgres.MigrateUp, quietLogger()),
		"Failed to run migrations")
	Truncate(t, db)
	return db
}

func startContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, Image,
		tcpostgres.WithDatabase("reigh_test"),
		tcpostgres.WithUsername("reigh"),
		tcpostgres.WithPassword("reigh"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		if ciutil.IsCI() {
			t.Fatalf("Failed to start Postgres testcontainer: %v", err)
		}
		t.Skipf("Failed to start Postgres testcontainer: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to build connection string")
	return dsn
}

// Truncate empties every application table.
func Truncate(t *testing.T, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	_, err := db.ExecContext(ctx, `TRUNCATE generations, tasks`)
	require.NoError(t, err, "Failed to truncate tables")
}

// WithTx executes a test function within a transaction, automatically rolling back
// after the test completes. This ensures test isolation and prevents side effects.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.Begin()
	require.NoError(t, err, "Failed to begin transaction")

	defer func() {
		// sql.ErrTxDone is expected if tx is already committed or rolled back
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	fn(t, tx)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
