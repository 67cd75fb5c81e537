package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reigh-app/reigh-api/internal/domain"
	"github.com/reigh-app/reigh-api/internal/store"
)

// CompletionHook derives a generation from a completed task.
// Each hook produces exactly one generation type.
type CompletionHook interface {
	// GenerationType is the type of the generation Build returns.
	GenerationType() string

	// Build creates the generation for task without storing it.
	Build(task *domain.Task) (*domain.Generation, error)
}

// PostProcessor turns completed tasks into generations, at most once per
// task and generation type.
type PostProcessor struct {
	generations store.GenerationStore
	logger      *slog.Logger

	mu    sync.RWMutex
	hooks map[string]CompletionHook
}

// NewPostProcessor creates a PostProcessor with the built-in hooks registered.
func NewPostProcessor(generations store.GenerationStore, logger *slog.Logger) *PostProcessor {
	p := &PostProcessor{
		generations: generations,
		logger:      logger.With("component", "post_processor"),
		hooks:       make(map[string]CompletionHook),
	}
	for taskType, hook := range DefaultHooks() {
		p.Register(taskType, hook)
	}
	return p
}

// Register sets the hook for taskType, replacing any previous one.
func (p *PostProcessor) Register(taskType string, hook CompletionHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks[taskType] = hook
}

// HookFor returns the hook registered for taskType.
func (p *PostProcessor) HookFor(taskType string) (CompletionHook, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	hook, ok := p.hooks[taskType]
	return hook, ok
}

// Process creates the generation for a completed task.
//
// It returns nil, nil when the task is not Complete or its type has no hook.
// When the generation already exists, including when a concurrent call
// stored it first, the stored generation is returned.
func (p *PostProcessor) Process(ctx context.Context, task *domain.Task) (*domain.Generation, error) {
	if task.Status != domain.TaskStatusComplete {
		return nil, nil
	}
	hook, ok := p.HookFor(task.TaskType)
	if !ok {
		return nil, nil
	}

	logger := p.logger.With("task_id", task.ID, "task_type", task.TaskType)
	genType := hook.GenerationType()

	existing, err := p.generations.FindByTask(ctx, task.ID, genType)
	if err == nil {
		logger.Debug("generation already exists", "generation_id", existing.ID)
		return existing, nil
	}
	if !errors.Is(err, store.ErrGenerationNotFound) {
		return nil, fmt.Errorf("failed to look up generation: %w", err)
	}

	gen, err := hook.Build(task)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s generation: %w", genType, err)
	}

	err = p.generations.CreateForTask(ctx, gen)
	if errors.Is(err, store.ErrDuplicate) {
		stored, findErr := p.generations.FindByTask(ctx, task.ID, genType)
		if findErr != nil {
			return nil, fmt.Errorf("failed to load concurrently created generation: %w", findErr)
		}
		return stored, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store generation: %w", err)
	}

	logger.Info("generation created",
		"generation_id", gen.ID,
		"generation_type", genType)
	return gen, nil
}
