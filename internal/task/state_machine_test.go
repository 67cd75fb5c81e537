package task

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/reigh-app/reigh-api/internal/domain"
	"github.com/reigh-app/reigh-api/internal/platform/memory"
	"github.com/reigh-app/reigh-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachine_Apply(t *testing.T) {
	ctx := context.Background()
	tasks := memory.NewTaskStore()
	machine := NewStateMachine(tasks, setupTestLogger())
	task := createTask(t, tasks, uuid.New())

	t.Run("forward moves", func(t *testing.T) {
		tr, err := machine.Apply(ctx, task.ID, domain.TaskStatusInProgress, "")
		require.NoError(t, err)
		assert.True(t, tr.Changed)
		assert.Equal(t, domain.TaskStatusQueued, tr.Previous)
		assert.Equal(t, domain.TaskStatusInProgress, tr.Task.Status)

		tr, err = machine.Apply(ctx, task.ID, domain.TaskStatusComplete, "done",
			WithOutputLocation("s3://bucket/out.png"))
		require.NoError(t, err)
		assert.True(t, tr.Changed)
		assert.Equal(t, domain.TaskStatusInProgress, tr.Previous)
		assert.Equal(t, "s3://bucket/out.png", tr.Task.OutputLocation)
		assert.Equal(t, "done", tr.Task.StatusReason)
	})

	t.Run("re-applying the terminal status is a no-op", func(t *testing.T) {
		before := mustGet(t, tasks, task.ID)

		tr, err := machine.Apply(ctx, task.ID, domain.TaskStatusComplete, "again")
		require.NoError(t, err)
		assert.False(t, tr.Changed)
		assert.Equal(t, before, tr.Task)
		assert.Equal(t, before, mustGet(t, tasks, task.ID))
	})

	t.Run("different terminal status conflicts", func(t *testing.T) {
		before := mustGet(t, tasks, task.ID)

		_, err := machine.Apply(ctx, task.ID, domain.TaskStatusFailed, "late failure")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConflict)

		var conflict *domain.TransitionConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, domain.TaskStatusComplete, conflict.From)
		assert.Equal(t, before, mustGet(t, tasks, task.ID))
	})

	t.Run("unknown task", func(t *testing.T) {
		_, err := machine.Apply(ctx, uuid.New(), domain.TaskStatusFailed, "")
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := machine.Apply(ctx, task.ID, domain.TaskStatus("Done"), "")
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.ErrorIs(t, err, domain.ErrInvalidTaskStatus)
	})
}

func TestStateMachine_ApplyReevaluatesAfterConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	tasks := newStubTaskStore()
	machine := NewStateMachine(tasks, setupTestLogger())
	task := createTask(t, tasks, uuid.New())

	// another writer fails the task between our read and our write
	tasks.CompareAndSetStatusFn = func(ctx context.Context, id uuid.UUID, update store.StatusUpdate) (*domain.Task, error) {
		tasks.CompareAndSetStatusFn = nil
		_, err := tasks.TaskStore.CompareAndSetStatus(ctx, id, store.StatusUpdate{
			Expected: update.Expected,
			Status:   domain.TaskStatusFailed,
			Reason:   "worker crash",
			At:       update.At,
		})
		require.NoError(t, err)
		return nil, store.ErrStatusMismatch
	}

	_, err := machine.Apply(ctx, task.ID, domain.TaskStatusComplete, "")
	assert.ErrorIs(t, err, domain.ErrConflict)

	stored := mustGet(t, tasks, task.ID)
	assert.Equal(t, domain.TaskStatusFailed, stored.Status)
	assert.Equal(t, "worker crash", stored.StatusReason)
}

func TestStateMachine_ApplyGivesUpUnderContention(t *testing.T) {
	ctx := context.Background()
	tasks := newStubTaskStore()
	machine := NewStateMachine(tasks, setupTestLogger())
	task := createTask(t, tasks, uuid.New())

	attempts := 0
	tasks.CompareAndSetStatusFn = func(ctx context.Context, id uuid.UUID, update store.StatusUpdate) (*domain.Task, error) {
		attempts++
		return nil, store.ErrStatusMismatch
	}

	_, err := machine.Apply(ctx, task.ID, domain.TaskStatusFailed, "")
	assert.ErrorIs(t, err, ErrStatusContention)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, maxApplyAttempts, attempts)
}

func TestStateMachine_ConcurrentFinalizersSingleWinner(t *testing.T) {
	ctx := context.Background()
	tasks := memory.NewTaskStore()
	machine := NewStateMachine(tasks, setupTestLogger())
	task := createTask(t, tasks, uuid.New())

	targets := []domain.TaskStatus{domain.TaskStatusComplete, domain.TaskStatusFailed, domain.TaskStatusCancelled}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed []domain.TaskStatus
	)
	for i := 0; i < 30; i++ {
		status := targets[i%len(targets)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr, err := machine.Apply(ctx, task.ID, status, "")
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrConflict)
				return
			}
			if tr.Changed {
				mu.Lock()
				changed = append(changed, status)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, changed, 1)
	assert.Equal(t, changed[0], mustGet(t, tasks, task.ID).Status)
}
