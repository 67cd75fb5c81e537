package task

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/reigh-app/reigh-api/internal/domain"
	"github.com/reigh-app/reigh-api/internal/events"
	"github.com/reigh-app/reigh-api/internal/platform/memory"
	"github.com/reigh-app/reigh-api/internal/store"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.TaskEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event *events.TaskEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count(eventType events.EventType, taskID uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType && e.Payload.Task.ID == taskID {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// inlineJobs runs submitted jobs synchronously.
type inlineJobs struct {
	mu        sync.Mutex
	submitted []string
	errs      []error
}

func (j *inlineJobs) Submit(ctx context.Context, job Job) error {
	err := job.Run(ctx)
	j.mu.Lock()
	defer j.mu.Unlock()
	j.submitted = append(j.submitted, job.Name)
	if err != nil {
		j.errs = append(j.errs, err)
	}
	return nil
}

func (j *inlineJobs) names() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.submitted...)
}

// stubTaskStore wraps a memory store and lets tests override single methods.
type stubTaskStore struct {
	*memory.TaskStore
	ListDependantsFn      func(ctx context.Context, id uuid.UUID) ([]*domain.Task, error)
	CompareAndSetStatusFn func(ctx context.Context, id uuid.UUID, update store.StatusUpdate) (*domain.Task, error)
}

func newStubTaskStore() *stubTaskStore {
	return &stubTaskStore{TaskStore: memory.NewTaskStore()}
}

func (s *stubTaskStore) ListDependants(ctx context.Context, id uuid.UUID) ([]*domain.Task, error) {
	if s.ListDependantsFn != nil {
		return s.ListDependantsFn(ctx, id)
	}
	return s.TaskStore.ListDependants(ctx, id)
}

func (s *stubTaskStore) CompareAndSetStatus(ctx context.Context, id uuid.UUID, update store.StatusUpdate) (*domain.Task, error) {
	if s.CompareAndSetStatusFn != nil {
		return s.CompareAndSetStatusFn(ctx, id, update)
	}
	return s.TaskStore.CompareAndSetStatus(ctx, id, update)
}

// createTask stores a Queued single_image task depending on deps.
func createTask(t *testing.T, tasks store.TaskStore, projectID uuid.UUID, deps ...uuid.UUID) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(projectID, domain.TaskTypeSingleImage, json.RawMessage(`{}`), "", deps, "")
	require.NoError(t, err)
	require.NoError(t, tasks.Create(context.Background(), task))
	return task
}

func mustGet(t *testing.T, tasks store.TaskStore, id uuid.UUID) *domain.Task {
	t.Helper()
	task, err := tasks.GetByID(context.Background(), id)
	require.NoError(t, err)
	return task
}
