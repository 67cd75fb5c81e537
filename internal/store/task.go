package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/reigh-app/reigh-api/internal/domain"
)

// StatusUpdate describes a conditional status write.
type StatusUpdate struct {
	// Expected is the status the task must still have for the write to apply.
	Expected domain.TaskStatus

	// Status is the new status.
	Status domain.TaskStatus

	// Reason is stored as the task's status reason.
	Reason string

	// OutputLocation replaces the stored output location when non-empty.
	OutputLocation string

	// At becomes the task's UpdatedAt.
	At time.Time
}

// TaskStore defines the interface for task persistence.
type TaskStore interface {
	// Create inserts a new task.
	// Returns ErrDuplicate if a task with the same ID exists.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its primary ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetByExternalID retrieves the task whose params embed the given worker job ID.
	// Returns ErrTaskNotFound if no task carries that ID.
	GetByExternalID(ctx context.Context, externalID string) (*domain.Task, error)

	// ListByProject returns the project's tasks, newest first.
	// An empty statuses slice means no status filter.
	ListByProject(ctx context.Context, projectID uuid.UUID, statuses []domain.TaskStatus) ([]*domain.Task, error)

	// ListDependants returns every task whose dependantOn contains id.
	ListDependants(ctx context.Context, id uuid.UUID) ([]*domain.Task, error)

	// CompareAndSetStatus applies update only if the stored status equals
	// update.Expected, and returns the task as written.
	// Returns ErrTaskNotFound if the task does not exist and
	// ErrStatusMismatch if the stored status differs.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, update StatusUpdate) (*domain.Task, error)
}
