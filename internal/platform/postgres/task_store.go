package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/reigh-app/reigh-api/internal/domain"
	"github.com/reigh-app/reigh-api/internal/platform/logger"
	"github.com/reigh-app/reigh-api/internal/store"
)

const taskColumns = `id, project_id, task_type, params, status, dependant_on,
	output_location, status_reason, created_at, updated_at`

// PostgresTaskStore implements store.TaskStore on PostgreSQL.
// dependant_on is a JSONB array with a GIN index, so dependant lookups are
// containment queries rather than scans.
type PostgresTaskStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore creates a PostgresTaskStore on db.
func NewPostgresTaskStore(db *sql.DB, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Create implements store.TaskStore.Create.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return store.NewStoreError("task", "create", "validation failed", errors.Join(store.ErrInvalidEntity, err))
	}

	deps, err := encodeIDs(task.DependantOn)
	if err != nil {
		return store.NewStoreError("task", "create", "failed to encode dependencies", err)
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.ProjectID,
		task.TaskType,
		string(task.Params),
		string(task.Status),
		deps,
		nullString(task.OutputLocation),
		nullString(task.StatusReason),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return store.NewStoreError("task", "create", "insert failed", MapError(err))
	}

	log.Debug("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("project_id", task.ProjectID.String()))
	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return s.getOne(ctx, "get", query, id)
}

// GetByExternalID implements store.TaskStore.GetByExternalID.
// If several tasks carry the same worker job ID the newest wins.
func (s *PostgresTaskStore) GetByExternalID(ctx context.Context, externalID string) (*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE params ->> 'task_id' = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return s.getOne(ctx, "get_by_external_id", query, externalID)
}

// ListByProject implements store.TaskStore.ListByProject.
func (s *PostgresTaskStore) ListByProject(
	ctx context.Context,
	projectID uuid.UUID,
	statuses []domain.TaskStatus,
) ([]*domain.Task, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE project_id = $1`)
	args := []any{projectID}

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			args = append(args, string(status))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		b.WriteString(` AND status IN (` + strings.Join(placeholders, ", ") + `)`)
	}
	b.WriteString(` ORDER BY created_at DESC, id DESC`)

	return s.query(ctx, "list_by_project", b.String(), args...)
}

// ListDependants implements store.TaskStore.ListDependants.
func (s *PostgresTaskStore) ListDependants(ctx context.Context, id uuid.UUID) ([]*domain.Task, error) {
	needle, err := encodeIDs([]uuid.UUID{id})
	if err != nil {
		return nil, store.NewStoreError("task", "list_dependants", "failed to encode id", err)
	}

	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE dependant_on @> $1::jsonb
		ORDER BY created_at ASC, id ASC
	`
	return s.query(ctx, "list_dependants", query, needle)
}

// CompareAndSetStatus implements store.TaskStore.CompareAndSetStatus.
// The row is locked for the comparison so concurrent writers serialize.
func (s *PostgresTaskStore) CompareAndSetStatus(
	ctx context.Context,
	id uuid.UUID,
	update store.StatusUpdate,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var written *domain.Task
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM tasks WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrTaskNotFound
		}
		if err != nil {
			return store.NewStoreError("task", "set_status", "failed to lock task", MapError(err))
		}
		if domain.TaskStatus(current) != update.Expected {
			return store.ErrStatusMismatch
		}

		query := `
			UPDATE tasks
			SET status = $2,
				status_reason = $3,
				output_location = COALESCE($4, output_location),
				updated_at = $5
			WHERE id = $1
			RETURNING ` + taskColumns
		written, err = scanTask(tx.QueryRowContext(ctx, query,
			id,
			string(update.Status),
			nullString(update.Reason),
			nullString(update.OutputLocation),
			update.At,
		))
		if err != nil {
			return store.NewStoreError("task", "set_status", "update failed", MapError(err))
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, store.ErrStatusMismatch) && !errors.Is(err, store.ErrNotFound) {
			log.Error("failed to set task status",
				slog.String("error", err.Error()),
				slog.String("task_id", id.String()))
		}
		return nil, err
	}

	return written, nil
}

func (s *PostgresTaskStore) getOne(ctx context.Context, op, query string, args ...any) (*domain.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get task",
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", op, "query failed", MapError(err))
	}
	return task, nil
}

func (s *PostgresTaskStore) query(ctx context.Context, op, query string, args ...any) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks",
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", op, "query failed", MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, store.NewStoreError("task", op, "scan failed", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", op, "row iteration failed", MapError(err))
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task           domain.Task
		params, deps   []byte
		status         string
		outputLocation sql.NullString
		statusReason   sql.NullString
	)
	err := row.Scan(
		&task.ID,
		&task.ProjectID,
		&task.TaskType,
		&params,
		&status,
		&deps,
		&outputLocation,
		&statusReason,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Params = json.RawMessage(params)
	task.Status = domain.TaskStatus(status)
	task.OutputLocation = outputLocation.String
	task.StatusReason = statusReason.String
	task.DependantOn = []uuid.UUID{}
	if len(deps) > 0 {
		if err := json.Unmarshal(deps, &task.DependantOn); err != nil {
			return nil, fmt.Errorf("failed to decode dependant_on: %w", err)
		}
	}
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	return &task, nil
}

func encodeIDs(ids []uuid.UUID) (string, error) {
	if ids == nil {
		ids = []uuid.UUID{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
