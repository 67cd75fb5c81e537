package task

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/reigh-app/reigh-api/internal/domain"
)

// ErrMissingOutput is returned by a hook when a completed task carries no
// output location to point the generation at.
var ErrMissingOutput = errors.New("completed task has no output location")

// Keys copied from a single image task's orchestrator details.
var singleImageDetailKeys = []string{"prompt", "seed", "resolution", "model", "negative_prompt"}

// DefaultHooks returns the built-in completion hooks keyed by task type.
func DefaultHooks() map[string]CompletionHook {
	return map[string]CompletionHook{
		domain.TaskTypeSingleImage:  SingleImageHook{},
		domain.TaskTypeTravelStitch: TravelStitchHook{},
	}
}

// SingleImageHook records the image produced by a single_image task.
type SingleImageHook struct{}

// GenerationType implements CompletionHook.
func (SingleImageHook) GenerationType() string { return domain.GenerationTypeImage }

// Build implements CompletionHook.
func (h SingleImageHook) Build(task *domain.Task) (*domain.Generation, error) {
	if task.OutputLocation == "" {
		return nil, fmt.Errorf("task %s: %w", task.ID, ErrMissingOutput)
	}

	details := map[string]any{}
	task.OrchestratorDetails(&details)

	params := provenance(task)
	for _, key := range singleImageDetailKeys {
		if v, ok := details[key]; ok {
			params[key] = v
		}
	}
	if ext := task.ExternalID(); ext != "" {
		params["external_task_id"] = ext
	}

	return buildGeneration(task, h.GenerationType(), params)
}

// TravelStitchHook records the stitched video produced by a travel_stitch task.
type TravelStitchHook struct{}

// GenerationType implements CompletionHook.
func (TravelStitchHook) GenerationType() string { return domain.GenerationTypeVideoTravelOutput }

// Build implements CompletionHook.
func (h TravelStitchHook) Build(task *domain.Task) (*domain.Generation, error) {
	if task.OutputLocation == "" {
		return nil, fmt.Errorf("task %s: %w", task.ID, ErrMissingOutput)
	}

	top := map[string]any{}
	_ = json.Unmarshal(task.Params, &top)
	details := map[string]any{}
	task.OrchestratorDetails(&details)

	params := provenance(task)
	for _, key := range []string{"shot_id", "run_id"} {
		if v, ok := top[key]; ok {
			params[key] = v
		} else if v, ok := details[key]; ok {
			params[key] = v
		}
	}

	return buildGeneration(task, h.GenerationType(), params)
}

func provenance(task *domain.Task) map[string]any {
	return map[string]any{
		"source_task_id": task.ID.String(),
		"task_type":      task.TaskType,
	}
}

func buildGeneration(task *domain.Task, genType string, params map[string]any) (*domain.Generation, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode generation params: %w", err)
	}
	return domain.NewGeneration(task, genType, task.OutputLocation, raw)
}
