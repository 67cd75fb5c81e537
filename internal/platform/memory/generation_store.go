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

// Compile-time check to ensure GenerationStore implements store.GenerationStore.
var _ store.GenerationStore = (*GenerationStore)(nil)

type generationKey struct {
	taskID  uuid.UUID
	genType string
}

// GenerationStore is an in-memory store.GenerationStore.
type GenerationStore struct {
	mu          sync.RWMutex
	generations map[uuid.UUID]*domain.Generation
	byTask      map[generationKey]uuid.UUID
}

// NewGenerationStore creates an empty GenerationStore.
func NewGenerationStore() *GenerationStore {
	return &GenerationStore{
		generations: make(map[uuid.UUID]*domain.Generation),
		byTask:      make(map[generationKey]uuid.UUID),
	}
}

// CreateForTask implements store.GenerationStore.
// The uniqueness check and the insert happen under one lock.
func (s *GenerationStore) CreateForTask(ctx context.Context, gen *domain.Generation) error {
	if err := gen.Validate(); err != nil {
		return store.NewStoreError("generation", "create", "validation failed", errors.Join(store.ErrInvalidEntity, err))
	}

	key := generationKey{taskID: gen.TaskID, genType: gen.Type}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byTask[key]; exists {
		return store.ErrGenerationExists
	}
	if _, exists := s.generations[gen.ID]; exists {
		return store.NewStoreError("generation", "create", "generation already exists", store.ErrDuplicate)
	}

	s.generations[gen.ID] = gen.Clone()
	s.byTask[key] = gen.ID
	return nil
}

// FindByTask implements store.GenerationStore.
func (s *GenerationStore) FindByTask(ctx context.Context, taskID uuid.UUID, genType string) (*domain.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byTask[generationKey{taskID: taskID, genType: genType}]
	if !ok {
		return nil, store.ErrGenerationNotFound
	}
	return s.generations[id].Clone(), nil
}

// ListByProject implements store.GenerationStore.
// A non-positive limit returns every generation after offset.
func (s *GenerationStore) ListByProject(
	ctx context.Context,
	projectID uuid.UUID,
	limit, offset int,
) ([]*domain.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.Generation, 0)
	for _, gen := range s.generations {
		if gen.ProjectID == projectID {
			all = append(all, gen)
		}
	}
	slices.SortFunc(all, func(a, b *domain.Generation) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(b.ID, a.ID)
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []*domain.Generation{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	out := make([]*domain.Generation, len(all))
	for i, gen := range all {
		out[i] = gen.Clone()
	}
	return out, nil
}

// CountByProject implements store.GenerationStore.
func (s *GenerationStore) CountByProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, gen := range s.generations {
		if gen.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}
