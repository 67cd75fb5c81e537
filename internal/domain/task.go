package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a task.
// The values are part of the wire format and are case-sensitive.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "Pending"
	TaskStatusQueued     TaskStatus = "Queued"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusComplete   TaskStatus = "Complete"
	TaskStatusFailed     TaskStatus = "Failed"
	TaskStatusCancelled  TaskStatus = "Cancelled"
)

// Task type tags with completion hooks.
const (
	TaskTypeSingleImage   = "single_image"
	TaskTypeTravelStitch  = "travel_stitch"
	ExternalTaskIDParam   = "task_id"
	orchestratorParamsKey = "orchestrator_details"
)

// AllTaskStatuses lists every status in lifecycle order.
var AllTaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusQueued,
	TaskStatusInProgress,
	TaskStatusComplete,
	TaskStatusFailed,
	TaskStatusCancelled,
}

// ActiveTaskStatuses are the statuses a bulk cancel sweeps up.
var ActiveTaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusQueued,
	TaskStatusInProgress,
}

// IsValid reports whether s is one of the known statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusQueued, TaskStatusInProgress,
		TaskStatusComplete, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are expected from s.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusComplete, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Cascades reports whether reaching s must propagate to dependants.
// Only the negative terminal statuses do; completion never does.
func (s TaskStatus) Cascades() bool {
	return s == TaskStatusFailed || s == TaskStatusCancelled
}

// IsInitial reports whether a task may be created in status s.
func (s TaskStatus) IsInitial() bool {
	return s == TaskStatusPending || s == TaskStatusQueued
}

// CheckTransition validates moving a task from one status to another.
//
// It returns noop=true when the move re-applies the current terminal status,
// a *TransitionConflictError when a terminal task would change, and
// ErrInvalidTaskStatus for unknown target values. Moves out of a non-terminal
// status are always accepted.
func CheckTransition(from, to TaskStatus) (noop bool, err error) {
	if !to.IsValid() {
		return false, NewValidationError("status", "is not a valid task status", ErrInvalidTaskStatus)
	}
	if !from.IsTerminal() {
		return false, nil
	}
	if from == to {
		return true, nil
	}
	return false, &TransitionConflictError{From: from, To: to}
}

// Task is a unit of asynchronous generation work executed by an external worker.
type Task struct {
	ID             uuid.UUID       `json:"id"`
	ProjectID      uuid.UUID       `json:"projectId"`
	TaskType       string          `json:"taskType"`
	Params         json.RawMessage `json:"params"`
	Status         TaskStatus      `json:"status"`
	DependantOn    []uuid.UUID     `json:"dependantOn"`
	OutputLocation string          `json:"outputLocation,omitempty"`
	StatusReason   string          `json:"statusReason,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// NewTask creates a Task with a fresh ID and timestamps.
// An empty status defaults to Queued. Duplicate dependencies are dropped,
// keeping first occurrence order.
func NewTask(
	projectID uuid.UUID,
	taskType string,
	params json.RawMessage,
	status TaskStatus,
	dependantOn []uuid.UUID,
	outputLocation string,
) (*Task, error) {
	if status == "" {
		status = TaskStatusQueued
	}

	now := time.Now().UTC()
	task := &Task{
		ID:             uuid.New(),
		ProjectID:      projectID,
		TaskType:       taskType,
		Params:         params,
		Status:         status,
		DependantOn:    dedupeIDs(dependantOn),
		OutputLocation: outputLocation,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}
	if !status.IsInitial() {
		return nil, NewValidationError("status", "must be Pending or Queued on creation", ErrInvalidTaskStatus)
	}

	return task, nil
}

// Validate checks the required fields of a Task.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("id", "is required", ErrInvalidID)
	}
	if t.ProjectID == uuid.Nil {
		return NewValidationError("project_id", "is required", ErrInvalidID)
	}
	if t.TaskType == "" {
		return NewValidationError("task_type", "is required", nil)
	}
	if !isJSONObject(t.Params) {
		return NewValidationError("params", "must be a JSON object", nil)
	}
	if !t.Status.IsValid() {
		return NewValidationError("status", "is not a valid task status", ErrInvalidTaskStatus)
	}
	for _, dep := range t.DependantOn {
		if dep == uuid.Nil {
			return NewValidationError("dependant_on", "contains an empty task ID", ErrInvalidID)
		}
		if dep == t.ID {
			return NewValidationError("dependant_on", "cannot reference the task itself", ErrInvalidID)
		}
	}
	return nil
}

// DependsOn reports whether id is one of the task's declared dependencies.
func (t *Task) DependsOn(id uuid.UUID) bool {
	for _, dep := range t.DependantOn {
		if dep == id {
			return true
		}
	}
	return false
}

// ExternalID returns the worker-side job identifier embedded in params, if any.
func (t *Task) ExternalID() string {
	var p map[string]json.RawMessage
	if err := json.Unmarshal(t.Params, &p); err != nil {
		return ""
	}
	raw, ok := p[ExternalTaskIDParam]
	if !ok {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return ""
	}
	return id
}

// OrchestratorDetails decodes params.orchestrator_details into v.
// It returns false when the key is missing or cannot be decoded.
func (t *Task) OrchestratorDetails(v any) bool {
	var p map[string]json.RawMessage
	if err := json.Unmarshal(t.Params, &p); err != nil {
		return false
	}
	raw, ok := p[orchestratorParamsKey]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// Clone returns a deep copy so stores can hand out tasks without sharing state.
func (t *Task) Clone() *Task {
	c := *t
	if t.Params != nil {
		c.Params = append(json.RawMessage(nil), t.Params...)
	}
	c.DependantOn = append([]uuid.UUID{}, t.DependantOn...)
	return &c
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}
