// Package main implements the entry point for the Reigh API server, which
// tracks generation tasks, cascades failures through their dependency graph
// and streams status changes to connected clients.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/reigh-app/reigh-api/internal/config"
	"github.com/reigh-app/reigh-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"Run a database migration command (up, down, status, version, reset) and exit")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		log.Fatalf("reigh-api: %v", err)
	}
}

// run loads configuration, sets up logging and either executes a migration
// command or serves until SIGINT/SIGTERM.
func run(migrateCmd string) error {
	if err := loadDotEnv(".env"); err != nil {
		return err
	}

	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrateCmd != "" {
		return handleMigrations(ctx, cfg, migrateCmd, appLogger)
	}

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}

// loadDotEnv reads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// loadAppConfig loads the application configuration from environment
// variables or config file.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_driver", cfg.Database.Driver)

	if cfg.Broadcast.RedisURL != "" {
		slog.Debug("Broadcast configuration", "redis_url_present", true)
	}
	if cfg.Auth.WorkerTokenSecret != "" {
		slog.Debug("Auth configuration", "worker_token_secret_present", true)
	}

	return cfg, nil
}
