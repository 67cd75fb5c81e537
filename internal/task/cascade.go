package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/reigh-app/reigh-api/internal/domain"
	"github.com/reigh-app/reigh-api/internal/events"
	"github.com/reigh-app/reigh-api/internal/store"
)

// CascadeResult summarizes one Cascade call.
type CascadeResult struct {
	// Updated lists the dependants moved to the cascaded status, in visit order.
	Updated []uuid.UUID

	// Skipped counts dependants that already had the cascaded status.
	Skipped int

	// Conflicts counts dependants that had already finished differently.
	Conflicts int

	// Errors counts dependants that could not be read or written.
	Errors int
}

// CascadeEngine propagates a failure or cancellation from a task to every
// task that transitively depends on it.
type CascadeEngine struct {
	tasks     store.TaskStore
	machine   *StateMachine
	publisher events.Publisher
	logger    *slog.Logger
}

// NewCascadeEngine creates a CascadeEngine.
func NewCascadeEngine(
	tasks store.TaskStore,
	machine *StateMachine,
	publisher events.Publisher,
	logger *slog.Logger,
) *CascadeEngine {
	return &CascadeEngine{
		tasks:     tasks,
		machine:   machine,
		publisher: publisher,
		logger:    logger.With("component", "cascade_engine"),
	}
}

type cascadeFrame struct {
	id     uuid.UUID
	reason string
}

// UpstreamReason builds the status reason recorded on a dependant.
func UpstreamReason(parent uuid.UUID, status domain.TaskStatus, reason string) string {
	return fmt.Sprintf("upstream task %s %s: %s", parent, status, reason)
}

// Cascade moves every transitive dependant of taskID to status.
//
// Only Failed and Cancelled cascade. Each dependant is visited at most once,
// so dependency cycles terminate. A dependant that already has status is not
// written again but its own dependants are still visited. A dependant that
// finished with another terminal status stops the cascade along that path.
// Errors on one dependant do not stop the others; the first one is returned
// with the result.
func (e *CascadeEngine) Cascade(
	ctx context.Context,
	taskID uuid.UUID,
	status domain.TaskStatus,
	reason string,
) (*CascadeResult, error) {
	if !status.Cascades() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("%s does not cascade", status), domain.ErrInvalidTaskStatus)
	}

	logger := e.logger.With("origin_task_id", taskID, "status", status)
	result := &CascadeResult{}
	visited := map[uuid.UUID]struct{}{taskID: {}}
	stack := []cascadeFrame{{id: taskID, reason: reason}}
	var firstErr error

	recordErr := func(err error) {
		result.Errors++
		if firstErr == nil {
			firstErr = err
		}
	}

	for len(stack) > 0 {
		parent := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dependants, err := e.tasks.ListDependants(ctx, parent.id)
		if err != nil {
			logger.Error("failed to list dependants", "task_id", parent.id, "error", err)
			recordErr(fmt.Errorf("list dependants of %s: %w", parent.id, err))
			continue
		}

		childReason := UpstreamReason(parent.id, status, parent.reason)

		// push in reverse so dependants are visited in the order listed
		for i := len(dependants) - 1; i >= 0; i-- {
			dep := dependants[i]
			if _, seen := visited[dep.ID]; seen {
				continue
			}
			visited[dep.ID] = struct{}{}

			if dep.Status == status {
				result.Skipped++
				next := dep.StatusReason
				if next == "" {
					next = childReason
				}
				stack = append(stack, cascadeFrame{id: dep.ID, reason: next})
				continue
			}

			tr, err := e.machine.Apply(ctx, dep.ID, status, childReason)
			switch {
			case errors.Is(err, domain.ErrConflict):
				result.Conflicts++
				logger.Debug("dependant already finished, not cascading through it",
					"task_id", dep.ID,
					"dependant_status", dep.Status)
				continue
			case err != nil:
				logger.Error("failed to cascade status to dependant", "task_id", dep.ID, "error", err)
				recordErr(fmt.Errorf("cascade to %s: %w", dep.ID, err))
				continue
			}

			if tr.Changed {
				result.Updated = append(result.Updated, dep.ID)
				if err := e.publisher.Publish(ctx, events.NewTaskEvent(events.TaskUpdated, tr.Task)); err != nil {
					logger.Warn("failed to publish cascaded task update", "task_id", dep.ID, "error", err)
				}
			} else {
				result.Skipped++
			}
			stack = append(stack, cascadeFrame{id: dep.ID, reason: tr.Task.StatusReason})
		}
	}

	logger.Info("cascade finished",
		"updated", len(result.Updated),
		"skipped", result.Skipped,
		"conflicts", result.Conflicts,
		"errors", result.Errors)

	return result, firstErr
}
