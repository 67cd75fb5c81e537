package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/reigh-app/reigh-api/internal/api/middleware"
	"github.com/reigh-app/reigh-api/internal/config"
	"github.com/reigh-app/reigh-api/internal/events"
	"github.com/reigh-app/reigh-api/internal/platform/memory"
	"github.com/reigh-app/reigh-api/internal/platform/postgres"
	"github.com/reigh-app/reigh-api/internal/store"
	"github.com/reigh-app/reigh-api/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil with the memory driver.
	db *sql.DB

	taskStore       store.TaskStore
	generationStore store.GenerationStore

	// Event system. relay and redisClient are nil without a Redis URL.
	hub         *events.Hub
	relay       *events.RedisRelay
	redisClient *redis.Client
	publisher   events.Publisher

	dispatcher  *task.Dispatcher
	taskService *task.Service
	workerAuth  *middleware.WorkerAuth
}

// newApplication creates a new application instance with all dependencies
// initialized. The dispatcher is started; everything is released by cleanup.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:     cfg,
		logger:     logger,
		workerAuth: middleware.NewWorkerAuth(cfg.Auth.WorkerTokenSecret),
	}

	if err := app.setupStores(ctx); err != nil {
		return nil, err
	}

	if err := app.setupEvents(ctx); err != nil {
		app.cleanup(ctx)
		return nil, err
	}

	app.dispatcher = task.NewDispatcher(task.DispatcherConfig{
		WorkerCount: cfg.Task.WorkerCount,
		QueueSize:   cfg.Task.QueueSize,
		JobTimeout:  time.Duration(cfg.Task.JobTimeoutSeconds) * time.Second,
	}, logger)
	app.dispatcher.Start()

	app.taskService = task.NewService(
		app.taskStore,
		app.generationStore,
		app.publisher,
		app.dispatcher,
		logger,
	)

	if !app.workerAuth.Enabled() {
		logger.Warn("worker token secret not configured, status updates are unauthenticated")
	}

	logger.Info("Application initialized successfully",
		"database_driver", cfg.Database.Driver,
		"redis_relay", app.relay != nil)
	return app, nil
}

// setupStores opens the configured persistence backend.
func (app *application) setupStores(ctx context.Context) error {
	switch app.config.Database.Driver {
	case "memory":
		app.taskStore = memory.NewTaskStore()
		app.generationStore = memory.NewGenerationStore()
		app.logger.Warn("using in-memory task store, data is lost on restart")
		return nil

	case "postgres":
		db, err := setupAppDatabase(ctx, app.config.Database, app.logger)
		if err != nil {
			return err
		}
		if app.config.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db, postgres.MigrateUp, app.logger); err != nil {
				_ = db.Close()
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
		}
		app.db = db
		app.taskStore = postgres.NewPostgresTaskStore(db, app.logger)
		app.generationStore = postgres.NewPostgresGenerationStore(db, app.logger)
		return nil

	default:
		return fmt.Errorf("unsupported database driver %q", app.config.Database.Driver)
	}
}

// setupEvents creates the local hub and, when Redis is configured, the relay
// that shares events between instances.
func (app *application) setupEvents(ctx context.Context) error {
	bc := app.config.Broadcast
	app.hub = events.NewHub(bc.SubscriberBuffer, app.logger)
	app.publisher = app.hub

	if bc.RedisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(bc.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	app.redisClient = client
	app.relay = events.NewRedisRelay(client, bc.Channel, app.hub, app.logger)
	app.publisher = app.relay
	app.logger.Info("Redis event relay configured", "channel", bc.Channel)
	return nil
}

// cleanup handles graceful shutdown of application resources.
// Subscribers are disconnected first, then queued jobs drain before the
// connections they use are closed.
func (app *application) cleanup(ctx context.Context) {
	if app.hub != nil {
		app.hub.Close()
	}

	if app.dispatcher != nil {
		if err := app.dispatcher.Stop(ctx); err != nil {
			app.logger.Error("Error stopping dispatcher", "error", err)
		}
	}

	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("Error closing redis client", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
