package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewGeneration(t *testing.T) {
	t.Parallel()

	task := &Task{ID: uuid.New(), ProjectID: uuid.New()}

	gen, err := NewGeneration(task, GenerationTypeImage, "/files/out.png", json.RawMessage(`{"source_task_id":"x"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.TaskID != task.ID || gen.ProjectID != task.ProjectID {
		t.Errorf("generation not linked to task: %+v", gen)
	}
	if gen.CreatedAt.IsZero() {
		t.Error("expected CreatedAt")
	}

	if _, err := NewGeneration(task, GenerationTypeImage, "", json.RawMessage(`{}`)); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for empty location, got %v", err)
	}
	if _, err := NewGeneration(task, "", "/x", json.RawMessage(`{}`)); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for empty type, got %v", err)
	}
	if _, err := NewGeneration(&Task{ID: uuid.New()}, "image", "/x", json.RawMessage(`{}`)); !errors.Is(err, ErrInvalidID) {
		t.Errorf("expected invalid id for missing project, got %v", err)
	}
}
