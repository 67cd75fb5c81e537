package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reigh-app/reigh-api/internal/config"
	"github.com/reigh-app/reigh-api/internal/platform/postgres"
)

var migrationCommands = map[string]bool{
	postgres.MigrateUp:      true,
	postgres.MigrateDown:    true,
	postgres.MigrateStatus:  true,
	postgres.MigrateVersion: true,
	postgres.MigrateReset:   true,
}

// handleMigrations executes a single migration command against the configured
// database. It's called from run() when the -migrate flag is set.
func handleMigrations(ctx context.Context, cfg *config.Config, command string, logger *slog.Logger) error {
	if !migrationCommands[command] {
		return fmt.Errorf("unknown migration command %q", command)
	}
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("migrations require the postgres driver, got %q", cfg.Database.Driver)
	}

	db, err := setupAppDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Error closing database connection", "error", err)
		}
	}()

	logger.Info("Executing migrations", "command", command)
	if err := postgres.Migrate(ctx, db, command, logger); err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}
	logger.Info("Migrations completed", "command", command)
	return nil
}
