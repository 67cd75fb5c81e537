package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Supported migration commands.
const (
	MigrateUp      = "up"
	MigrateDown    = "down"
	MigrateStatus  = "status"
	MigrateVersion = "version"
	MigrateReset   = "reset"
)

// goose keeps its settings in package globals.
var gooseMu sync.Mutex

// slogGooseLogger adapts goose's logger to slog. Fatalf does not exit so the
// caller decides how to fail.
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Migrate runs a goose command against db using the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB, command string, logger *slog.Logger) error {
	log := logger.With("component", "migrations", "command", command)
	start := time.Now()

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(&slogGooseLogger{logger: log})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	var err error
	switch command {
	case MigrateUp:
		err = goose.UpContext(ctx, db, migrationsDir)
	case MigrateDown:
		err = goose.DownContext(ctx, db, migrationsDir)
	case MigrateStatus:
		err = goose.StatusContext(ctx, db, migrationsDir)
	case MigrateReset:
		err = goose.ResetContext(ctx, db, migrationsDir)
	case MigrateVersion:
		var version int64
		version, err = goose.GetDBVersionContext(ctx, db)
		if err == nil {
			log.Info("current schema version", "version", version)
		}
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	if err != nil {
		log.Error("migration failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return fmt.Errorf("migration %s failed: %w", command, err)
	}

	log.Info("migration completed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}
