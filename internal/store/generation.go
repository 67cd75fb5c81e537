package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/reigh-app/reigh-api/internal/domain"
)

// GenerationStore defines the interface for generation persistence.
type GenerationStore interface {
	// CreateForTask inserts a generation derived from a task.
	// Returns ErrGenerationExists if a generation of the same type is already
	// linked to the task. Implementations must make the check and the insert atomic.
	CreateForTask(ctx context.Context, gen *domain.Generation) error

	// FindByTask returns the generation of the given type linked to a task.
	// Returns ErrGenerationNotFound if there is none.
	FindByTask(ctx context.Context, taskID uuid.UUID, genType string) (*domain.Generation, error)

	// ListByProject returns a page of the project's generations, newest first.
	ListByProject(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*domain.Generation, error)

	// CountByProject returns how many generations the project has.
	CountByProject(ctx context.Context, projectID uuid.UUID) (int, error)
}
