package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/reigh-app/reigh-api/internal/domain"
)

// EventType names a task lifecycle notification.
type EventType string

// Event types sent to clients.
const (
	TaskCreated EventType = "TASK_CREATED"
	TaskUpdated EventType = "TASK_UPDATED"
)

// TaskEvent is the message pushed to subscribers when a task is created or
// changes status.
type TaskEvent struct {
	Type    EventType        `json:"type"`
	Payload TaskEventPayload `json:"payload"`
}

// TaskEventPayload carries the task as it was written.
type TaskEventPayload struct {
	ProjectID uuid.UUID    `json:"projectId"`
	Task      *domain.Task `json:"task"`
}

// NewTaskEvent builds an event from a snapshot of task.
func NewTaskEvent(eventType EventType, task *domain.Task) *TaskEvent {
	return &TaskEvent{
		Type: eventType,
		Payload: TaskEventPayload{
			ProjectID: task.ProjectID,
			Task:      task.Clone(),
		},
	}
}

// Publisher delivers task events to whoever is listening.
// Implementations must not block on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, event *TaskEvent) error
}
