package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/reigh-app/reigh-api/internal/domain"
	"github.com/reigh-app/reigh-api/internal/store"
)

// Compile-time check to ensure TaskStore implements store.TaskStore.
var _ store.TaskStore = (*TaskStore)(nil)

// TaskStore is an in-memory store.TaskStore.
// It keeps a reverse index from a task to the tasks that declared it as a
// dependency so cascades don't scan the whole table.
type TaskStore struct {
	mu         sync.RWMutex
	tasks      map[uuid.UUID]*domain.Task
	dependants map[uuid.UUID][]uuid.UUID
}

// NewTaskStore creates an empty TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks:      make(map[uuid.UUID]*domain.Task),
		dependants: make(map[uuid.UUID][]uuid.UUID),
	}
}

// Create implements store.TaskStore.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return store.NewStoreError("task", "create", "validation failed", errors.Join(store.ErrInvalidEntity, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return store.NewStoreError("task", "create", "task already exists", store.ErrDuplicate)
	}

	s.tasks[task.ID] = task.Clone()
	for _, dep := range task.DependantOn {
		s.dependants[dep] = append(s.dependants[dep], task.ID)
	}
	return nil
}

// GetByID implements store.TaskStore.
func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return task.Clone(), nil
}

// GetByExternalID implements store.TaskStore.
// When several tasks carry the same external ID the newest wins.
func (s *TaskStore) GetByExternalID(ctx context.Context, externalID string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Task
	for _, task := range s.tasks {
		if externalID == "" || task.ExternalID() != externalID {
			continue
		}
		if found == nil || newerFirst(task, found) < 0 {
			found = task
		}
	}
	if found == nil {
		return nil, store.ErrTaskNotFound
	}
	return found.Clone(), nil
}

// ListByProject implements store.TaskStore.
func (s *TaskStore) ListByProject(
	ctx context.Context,
	projectID uuid.UUID,
	statuses []domain.TaskStatus,
) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Task, 0)
	for _, task := range s.tasks {
		if task.ProjectID != projectID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, task.Status) {
			continue
		}
		out = append(out, task.Clone())
	}
	slices.SortFunc(out, newerFirst)
	return out, nil
}

// ListDependants implements store.TaskStore.
func (s *TaskStore) ListDependants(ctx context.Context, id uuid.UUID) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.dependants[id]
	out := make([]*domain.Task, 0, len(ids))
	for _, depID := range ids {
		if task, ok := s.tasks[depID]; ok {
			out = append(out, task.Clone())
		}
	}
	slices.SortFunc(out, olderFirst)
	return out, nil
}

// CompareAndSetStatus implements store.TaskStore.
func (s *TaskStore) CompareAndSetStatus(
	ctx context.Context,
	id uuid.UUID,
	update store.StatusUpdate,
) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	if task.Status != update.Expected {
		return nil, store.ErrStatusMismatch
	}

	task.Status = update.Status
	task.StatusReason = update.Reason
	if update.OutputLocation != "" {
		task.OutputLocation = update.OutputLocation
	}
	task.UpdatedAt = update.At
	return task.Clone(), nil
}

func newerFirst(a, b *domain.Task) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return compareIDs(b.ID, a.ID)
}

func olderFirst(a, b *domain.Task) int {
	return newerFirst(b, a)
}

func compareIDs(a, b uuid.UUID) int {
	return slices.Compare(a[:], b[:])
}
