package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/reigh-app/reigh-api/internal/domain"
	"github.com/reigh-app/reigh-api/internal/events"
	"github.com/reigh-app/reigh-api/internal/store"
)

// Status reasons recorded by the service.
const (
	ReasonCancelledByUser = "Task cancelled by user via API"
	ReasonBulkCancelled   = "Bulk cancelled via /cancel-pending"
)

// Generation paging defaults.
const (
	DefaultGenerationPageSize = 24
	MaxGenerationPageSize     = 100
)

// Job names used for background work.
const (
	JobCascade     = "cascade"
	JobPostProcess = "post_process"
)

// CreateTaskParams holds the fields a client may set on a new task.
type CreateTaskParams struct {
	ProjectID      uuid.UUID
	TaskType       string
	Params         json.RawMessage
	Status         domain.TaskStatus
	DependantOn    []uuid.UUID
	OutputLocation string
}

// UpdateStatusParams holds a worker's status report.
type UpdateStatusParams struct {
	Status         domain.TaskStatus
	Reason         string
	OutputLocation string
}

// Service is the entry point for every task operation exposed to clients and
// workers. It persists tasks, announces changes and schedules the follow-up
// work a status change implies.
type Service struct {
	tasks       store.TaskStore
	generations store.GenerationStore
	machine     *StateMachine
	cascade     *CascadeEngine
	post        *PostProcessor
	jobs        JobSubmitter
	publisher   events.Publisher
	logger      *slog.Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithCompletionHook registers an extra completion hook for taskType.
func WithCompletionHook(taskType string, hook CompletionHook) ServiceOption {
	return func(s *Service) {
		s.post.Register(taskType, hook)
	}
}

// NewService creates a Service.
func NewService(
	tasks store.TaskStore,
	generations store.GenerationStore,
	publisher events.Publisher,
	jobs JobSubmitter,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	machine := NewStateMachine(tasks, logger)
	s := &Service{
		tasks:       tasks,
		generations: generations,
		machine:     machine,
		cascade:     NewCascadeEngine(tasks, machine, publisher, logger),
		post:        NewPostProcessor(generations, logger),
		jobs:        jobs,
		publisher:   publisher,
		logger:      logger.With("component", "task_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTask validates and stores a new task, then announces it.
func (s *Service) CreateTask(ctx context.Context, params CreateTaskParams) (*domain.Task, error) {
	task, err := domain.NewTask(
		params.ProjectID,
		params.TaskType,
		params.Params,
		params.Status,
		params.DependantOn,
		params.OutputLocation,
	)
	if err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Info("task created",
		"task_id", task.ID,
		"project_id", task.ProjectID,
		"task_type", task.TaskType,
		"dependency_count", len(task.DependantOn))

	s.publish(ctx, events.TaskCreated, task)
	return task, nil
}

// ListTasks returns a project's tasks, newest first, optionally filtered by status.
func (s *Service) ListTasks(ctx context.Context, projectID uuid.UUID, statuses []domain.TaskStatus) ([]*domain.Task, error) {
	if projectID == uuid.Nil {
		return nil, domain.NewValidationError("project_id", "is required", domain.ErrInvalidID)
	}
	return s.tasks.ListByProject(ctx, projectID, statuses)
}

// GetTask returns a task by ID.
func (s *Service) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

// GetTaskByExternalID returns the task whose params carry the worker job ID.
func (s *Service) GetTaskByExternalID(ctx context.Context, externalID string) (*domain.Task, error) {
	if externalID == "" {
		return nil, domain.NewValidationError("task_id", "is required", nil)
	}
	return s.tasks.GetByExternalID(ctx, externalID)
}

// UpdateTaskStatus applies a worker's status report.
//
// A Failed or Cancelled task has its dependants cascaded in the background,
// and a Complete task is post-processed in the background. Both also happen
// when the same terminal status is reported again, which lets a worker retry
// a report whose follow-up work was lost.
func (s *Service) UpdateTaskStatus(ctx context.Context, id uuid.UUID, params UpdateStatusParams) (*domain.Task, error) {
	reason := params.Reason
	if reason == "" && params.Status.Cascades() {
		reason = fmt.Sprintf("Task status updated to %s via API without a specific reason.", params.Status)
	}

	tr, err := s.machine.Apply(ctx, id, params.Status, reason, WithOutputLocation(params.OutputLocation))
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, tr, reason)
	return tr.Task, nil
}

// CancelTask cancels a single task and its dependants.
func (s *Service) CancelTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	tr, err := s.machine.Apply(ctx, id, domain.TaskStatusCancelled, ReasonCancelledByUser)
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, tr, ReasonCancelledByUser)
	return tr.Task, nil
}

// CancelAllPending cancels every Pending, Queued or In Progress task of a
// project and returns how many were cancelled. Tasks that finish while the
// sweep runs are left alone.
func (s *Service) CancelAllPending(ctx context.Context, projectID uuid.UUID) (int, error) {
	if projectID == uuid.Nil {
		return 0, domain.NewValidationError("project_id", "is required", domain.ErrInvalidID)
	}

	active, err := s.tasks.ListByProject(ctx, projectID, domain.ActiveTaskStatuses)
	if err != nil {
		return 0, fmt.Errorf("failed to list active tasks: %w", err)
	}

	cancelled := 0
	for _, task := range active {
		tr, err := s.machine.Apply(ctx, task.ID, domain.TaskStatusCancelled, ReasonBulkCancelled)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) || errors.Is(err, store.ErrNotFound) {
				s.logger.Debug("task finished before bulk cancel reached it", "task_id", task.ID, "error", err)
			} else {
				s.logger.Error("failed to cancel task", "task_id", task.ID, "error", err)
			}
			continue
		}
		if tr.Changed {
			cancelled++
		}
		s.afterTransition(ctx, tr, ReasonBulkCancelled)
	}

	s.logger.Info("cancelled active tasks",
		"project_id", projectID,
		"active_count", len(active),
		"cancelled_count", cancelled)
	return cancelled, nil
}

// GenerationPage is one page of a project's generations.
type GenerationPage struct {
	Items []*domain.Generation
	Page  int
	Limit int
	Total int
}

// TotalPages returns the number of pages of Limit items.
func (p *GenerationPage) TotalPages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// ListGenerations returns one page of a project's generations, newest first.
// Pages start at 1; out-of-range paging values fall back to the defaults.
func (s *Service) ListGenerations(ctx context.Context, projectID uuid.UUID, page, limit int) (*GenerationPage, error) {
	if projectID == uuid.Nil {
		return nil, domain.NewValidationError("project_id", "is required", domain.ErrInvalidID)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultGenerationPageSize
	}
	if limit > MaxGenerationPageSize {
		limit = MaxGenerationPageSize
	}

	items, err := s.generations.ListByProject(ctx, projectID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	total, err := s.generations.CountByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to count generations: %w", err)
	}

	return &GenerationPage{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// afterTransition announces a change and schedules the work it implies.
func (s *Service) afterTransition(ctx context.Context, tr *Transition, reason string) {
	task := tr.Task
	if tr.Changed {
		s.publish(ctx, events.TaskUpdated, task)
	} else if task.StatusReason != "" {
		reason = task.StatusReason
	}

	switch {
	case task.Status.Cascades():
		status := task.Status
		s.dispatch(ctx, Job{
			Name:   JobCascade,
			TaskID: task.ID,
			Run: func(ctx context.Context) error {
				_, err := s.cascade.Cascade(ctx, task.ID, status, reason)
				return err
			},
		})
	case task.Status == domain.TaskStatusComplete:
		snapshot := task.Clone()
		s.dispatch(ctx, Job{
			Name:   JobPostProcess,
			TaskID: task.ID,
			Run: func(ctx context.Context) error {
				_, err := s.post.Process(ctx, snapshot)
				return err
			},
		})
	}
}

func (s *Service) publish(ctx context.Context, eventType events.EventType, task *domain.Task) {
	if err := s.publisher.Publish(ctx, events.NewTaskEvent(eventType, task)); err != nil {
		s.logger.Warn("failed to publish task event",
			"event_type", eventType,
			"task_id", task.ID,
			"error", err)
	}
}

func (s *Service) dispatch(ctx context.Context, job Job) {
	if err := s.jobs.Submit(ctx, job); err != nil {
		s.logger.Error("failed to dispatch background job",
			"job", job.Name,
			"task_id", job.TaskID,
			"error", err)
	}
}
