package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/reigh-app/reigh-api/internal/domain"
	"github.com/reigh-app/reigh-api/internal/platform/logger"
	"github.com/reigh-app/reigh-api/internal/store"
)

const generationColumns = `id, project_id, task_id, type, location, params, created_at`

// PostgresGenerationStore implements store.GenerationStore on PostgreSQL.
type PostgresGenerationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// Ensure PostgresGenerationStore implements store.GenerationStore interface
var _ store.GenerationStore = (*PostgresGenerationStore)(nil)

// NewPostgresGenerationStore creates a PostgresGenerationStore. db may be the
// pool or a transaction.
func NewPostgresGenerationStore(db store.DBTX, logger *slog.Logger) *PostgresGenerationStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresGenerationStore{
		db:     db,
		logger: logger.With(slog.String("component", "generation_store")),
	}
}

// CreateForTask implements store.GenerationStore.CreateForTask.
// The unique (task_id, type) index makes the existence check and the insert
// a single atomic statement.
func (s *PostgresGenerationStore) CreateForTask(ctx context.Context, gen *domain.Generation) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := gen.Validate(); err != nil {
		return store.NewStoreError("generation", "create", "validation failed", errors.Join(store.ErrInvalidEntity, err))
	}

	query := `
		INSERT INTO generations (` + generationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (task_id, type) DO NOTHING
		RETURNING id
	`
	var id uuid.UUID
	err := s.db.QueryRowContext(
		ctx,
		query,
		gen.ID,
		gen.ProjectID,
		gen.TaskID,
		gen.Type,
		gen.Location,
		string(gen.Params),
		gen.CreatedAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("generation already exists for task",
			slog.String("task_id", gen.TaskID.String()),
			slog.String("type", gen.Type))
		return store.ErrGenerationExists
	}
	if err != nil {
		log.Error("failed to create generation",
			slog.String("error", err.Error()),
			slog.String("task_id", gen.TaskID.String()))
		if IsUniqueViolation(err) {
			return store.NewStoreError("generation", "create", "generation id already exists", MapError(err))
		}
		return store.NewStoreError("generation", "create", "insert failed", MapError(err))
	}

	log.Info("generation created",
		slog.String("generation_id", id.String()),
		slog.String("task_id", gen.TaskID.String()),
		slog.String("type", gen.Type))
	return nil
}

// FindByTask implements store.GenerationStore.FindByTask.
func (s *PostgresGenerationStore) FindByTask(ctx context.Context, taskID uuid.UUID, genType string) (*domain.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE task_id = $1 AND type = $2`

	gen, err := scanGeneration(s.db.QueryRowContext(ctx, query, taskID, genType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrGenerationNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to find generation",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, store.NewStoreError("generation", "find_by_task", "query failed", MapError(err))
	}
	return gen, nil
}

// ListByProject implements store.GenerationStore.ListByProject.
// A non-positive limit returns every generation.
func (s *PostgresGenerationStore) ListByProject(
	ctx context.Context,
	projectID uuid.UUID,
	limit, offset int,
) ([]*domain.Generation, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if offset < 0 {
		offset = 0
	}
	query := `
		SELECT ` + generationColumns + `
		FROM generations
		WHERE project_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2
	`
	args := []any{projectID, offset}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list generations",
			slog.String("error", err.Error()),
			slog.String("project_id", projectID.String()))
		return nil, store.NewStoreError("generation", "list_by_project", "query failed", MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	gens := []*domain.Generation{}
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, store.NewStoreError("generation", "list_by_project", "scan failed", err)
		}
		gens = append(gens, gen)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("generation", "list_by_project", "row iteration failed", MapError(err))
	}
	return gens, nil
}

// CountByProject implements store.GenerationStore.CountByProject.
func (s *PostgresGenerationStore) CountByProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM generations WHERE project_id = $1`, projectID).Scan(&n)
	if err != nil {
		return 0, store.NewStoreError("generation", "count_by_project", "query failed", MapError(err))
	}
	return n, nil
}

func scanGeneration(row rowScanner) (*domain.Generation, error) {
	var (
		gen    domain.Generation
		params []byte
	)
	err := row.Scan(
		&gen.ID,
		&gen.ProjectID,
		&gen.TaskID,
		&gen.Type,
		&gen.Location,
		&params,
		&gen.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	gen.Params = json.RawMessage(params)
	gen.CreatedAt = gen.CreatedAt.UTC()
	return &gen, nil
}
