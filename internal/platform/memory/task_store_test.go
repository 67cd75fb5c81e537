package memory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/reigh-app/reigh-api/internal/domain"
	"github.com/reigh-app/reigh-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTask(t *testing.T, projectID uuid.UUID, deps ...uuid.UUID) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(projectID, domain.TaskTypeSingleImage, json.RawMessage(`{}`), "", deps, "")
	require.NoError(t, err)
	return task
}

func TestTaskStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	task := newTask(t, uuid.New())

	require.NoError(t, s.Create(ctx, task))

	got, err := s.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, domain.TaskStatusQueued, got.Status)

	// returned copies must not alias stored state
	got.Status = domain.TaskStatusFailed
	again, err := s.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusQueued, again.Status)

	err = s.Create(ctx, task)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	_, err = s.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskStore_CreateRejectsInvalid(t *testing.T) {
	s := NewTaskStore()
	task := newTask(t, uuid.New())
	task.TaskType = ""

	err := s.Create(context.Background(), task)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTaskStore_GetByExternalID(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	task := newTask(t, uuid.New())
	task.Params = json.RawMessage(`{"task_id":"job-42"}`)
	require.NoError(t, s.Create(ctx, task))

	got, err := s.GetByExternalID(ctx, "job-42")
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	_, err = s.GetByExternalID(ctx, "job-43")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	_, err = s.GetByExternalID(ctx, "")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskStore_ListByProject(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	projectID := uuid.New()
	base := time.Now().UTC()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		task := newTask(t, projectID)
		task.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.Create(ctx, task))
		ids = append(ids, task.ID)
	}
	require.NoError(t, s.Create(ctx, newTask(t, uuid.New())))

	_, err := s.CompareAndSetStatus(ctx, ids[1], store.StatusUpdate{
		Expected: domain.TaskStatusQueued,
		Status:   domain.TaskStatusInProgress,
		At:       base,
	})
	require.NoError(t, err)

	all, err := s.ListByProject(ctx, projectID, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{ids[2], ids[1], ids[0]}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

	running, err := s.ListByProject(ctx, projectID, []domain.TaskStatus{domain.TaskStatusInProgress})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, ids[1], running[0].ID)

	none, err := s.ListByProject(ctx, uuid.New(), nil)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestTaskStore_ListDependants(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	projectID := uuid.New()

	root := newTask(t, projectID)
	child := newTask(t, projectID, root.ID)
	other := newTask(t, projectID)
	both := newTask(t, projectID, other.ID, root.ID)
	for _, task := range []*domain.Task{root, child, other, both} {
		require.NoError(t, s.Create(ctx, task))
	}

	deps, err := s.ListDependants(ctx, root.ID)
	require.NoError(t, err)
	got := []uuid.UUID{}
	for _, d := range deps {
		got = append(got, d.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{child.ID, both.ID}, got)

	leaf, err := s.ListDependants(ctx, child.ID)
	require.NoError(t, err)
	assert.Empty(t, leaf)
}

func TestTaskStore_CompareAndSetStatus(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	task := newTask(t, uuid.New())
	require.NoError(t, s.Create(ctx, task))
	at := time.Now().UTC().Add(time.Minute)

	updated, err := s.CompareAndSetStatus(ctx, task.ID, store.StatusUpdate{
		Expected:       domain.TaskStatusQueued,
		Status:         domain.TaskStatusComplete,
		Reason:         "done",
		OutputLocation: "s3://bucket/out.png",
		At:             at,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusComplete, updated.Status)
	assert.Equal(t, "done", updated.StatusReason)
	assert.Equal(t, "s3://bucket/out.png", updated.OutputLocation)
	assert.True(t, at.Equal(updated.UpdatedAt))

	_, err = s.CompareAndSetStatus(ctx, task.ID, store.StatusUpdate{
		Expected: domain.TaskStatusQueued,
		Status:   domain.TaskStatusFailed,
	})
	assert.ErrorIs(t, err, store.ErrStatusMismatch)

	_, err = s.CompareAndSetStatus(ctx, uuid.New(), store.StatusUpdate{})
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskStore_CompareAndSetStatusSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	task := newTask(t, uuid.New())
	require.NoError(t, s.Create(ctx, task))

	const writers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CompareAndSetStatus(ctx, task.ID, store.StatusUpdate{
				Expected: domain.TaskStatusQueued,
				Status:   domain.TaskStatusFailed,
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}
