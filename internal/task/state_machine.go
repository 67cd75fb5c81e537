package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/reigh-app/reigh-api/internal/domain"
	"github.com/reigh-app/reigh-api/internal/store"
)

// maxApplyAttempts bounds how often Apply re-reads a task whose status
// changed between the read and the conditional write.
const maxApplyAttempts = 3

// ErrStatusContention is returned when a task kept changing under Apply.
var ErrStatusContention = fmt.Errorf("%w: task status kept changing concurrently", domain.ErrConflict)

// Transition is the outcome of a successful Apply.
type Transition struct {
	// Task is the task as stored after the call.
	Task *domain.Task

	// Previous is the status the task had before the call.
	Previous domain.TaskStatus

	// Changed is false when the call re-applied the task's terminal status.
	Changed bool
}

type applyOptions struct {
	outputLocation string
}

// ApplyOption customizes a status write.
type ApplyOption func(*applyOptions)

// WithOutputLocation records the task's output location in the same write.
func WithOutputLocation(location string) ApplyOption {
	return func(o *applyOptions) {
		o.outputLocation = location
	}
}

// StateMachine moves tasks between statuses. Every write is conditional on
// the status it read, so two concurrent finalizers can never both win.
type StateMachine struct {
	tasks  store.TaskStore
	logger *slog.Logger
	now    func() time.Time
}

// NewStateMachine creates a StateMachine over tasks.
func NewStateMachine(tasks store.TaskStore, logger *slog.Logger) *StateMachine {
	return &StateMachine{
		tasks:  tasks,
		logger: logger.With("component", "state_machine"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Apply moves task id to status.
//
// Moves out of a non-terminal status always succeed. Re-applying a task's
// terminal status succeeds without writing and returns Changed=false. Any
// other move out of a terminal status fails with domain.ErrConflict.
// Unknown ids return store.ErrTaskNotFound and unknown statuses a
// domain.ValidationError.
func (m *StateMachine) Apply(
	ctx context.Context,
	id uuid.UUID,
	status domain.TaskStatus,
	reason string,
	opts ...ApplyOption,
) (*Transition, error) {
	if !status.IsValid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("%q is not a valid task status", status), domain.ErrInvalidTaskStatus)
	}

	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}

	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		current, err := m.tasks.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		noop, err := domain.CheckTransition(current.Status, status)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", id, err)
		}
		if noop {
			return &Transition{Task: current, Previous: current.Status, Changed: false}, nil
		}

		updated, err := m.tasks.CompareAndSetStatus(ctx, id, store.StatusUpdate{
			Expected:       current.Status,
			Status:         status,
			Reason:         reason,
			OutputLocation: o.outputLocation,
			At:             m.now(),
		})
		if errors.Is(err, store.ErrStatusMismatch) {
			m.logger.Debug("task status changed concurrently, re-evaluating",
				"task_id", id,
				"attempt", attempt,
				"target_status", status)
			continue
		}
		if err != nil {
			return nil, err
		}

		m.logger.Debug("task status changed",
			"task_id", id,
			"from", current.Status,
			"to", status)
		return &Transition{Task: updated, Previous: current.Status, Changed: true}, nil
	}

	return nil, fmt.Errorf("task %s: %w", id, ErrStatusContention)
}
