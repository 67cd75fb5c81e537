package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Generation types produced by completion hooks.
const (
	GenerationTypeImage             = "image"
	GenerationTypeVideoTravelOutput = "video_travel_output"
)

// Generation is a user-visible media artifact derived from a completed task.
// TaskID records provenance; a task yields at most one generation per type.
type Generation struct {
	ID        uuid.UUID       `json:"id"`
	ProjectID uuid.UUID       `json:"projectId"`
	TaskID    uuid.UUID       `json:"taskId"`
	Location  string          `json:"location"`
	Type      string          `json:"type"`
	Params    json.RawMessage `json:"params"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewGeneration creates a Generation linked to the task it was derived from.
func NewGeneration(task *Task, genType, location string, params json.RawMessage) (*Generation, error) {
	gen := &Generation{
		ID:        uuid.New(),
		ProjectID: task.ProjectID,
		TaskID:    task.ID,
		Location:  location,
		Type:      genType,
		Params:    params,
		CreatedAt: time.Now().UTC(),
	}
	if err := gen.Validate(); err != nil {
		return nil, err
	}
	return gen, nil
}

// Validate checks the required fields of a Generation.
func (g *Generation) Validate() error {
	if g.ID == uuid.Nil {
		return NewValidationError("id", "is required", ErrInvalidID)
	}
	if g.ProjectID == uuid.Nil {
		return NewValidationError("project_id", "is required", ErrInvalidID)
	}
	if g.TaskID == uuid.Nil {
		return NewValidationError("task_id", "is required", ErrInvalidID)
	}
	if g.Location == "" {
		return NewValidationError("location", "is required", nil)
	}
	if g.Type == "" {
		return NewValidationError("type", "is required", nil)
	}
	if !isJSONObject(g.Params) {
		return NewValidationError("params", "must be a JSON object", nil)
	}
	return nil
}

// Clone returns a deep copy.
func (g *Generation) Clone() *Generation {
	c := *g
	if g.Params != nil {
		c.Params = append(json.RawMessage(nil), g.Params...)
	}
	return &c
}
