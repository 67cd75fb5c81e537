package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/reigh-app/reigh-api/internal/api/shared"
	"github.com/reigh-app/reigh-api/internal/domain"
	"github.com/reigh-app/reigh-api/internal/platform/logger"
	"github.com/reigh-app/reigh-api/internal/task"
)

// TaskService is the task behaviour the HTTP layer depends on.
type TaskService interface {
	CreateTask(ctx context.Context, params task.CreateTaskParams) (*domain.Task, error)
	ListTasks(ctx context.Context, projectID uuid.UUID, statuses []domain.TaskStatus) ([]*domain.Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	GetTaskByExternalID(ctx context.Context, externalID string) (*domain.Task, error)
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, params task.UpdateStatusParams) (*domain.Task, error)
	CancelTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	CancelAllPending(ctx context.Context, projectID uuid.UUID) (int, error)
	ListGenerations(ctx context.Context, projectID uuid.UUID, page, limit int) (*task.GenerationPage, error)
}

var _ TaskService = (*task.Service)(nil)

// TaskHandler handles task HTTP requests.
type TaskHandler struct {
	service TaskService
	logger  *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(service TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		service: service,
		logger:  logger.With(slog.String("component", "task_handler")),
	}
}

// Routes mounts the task endpoints. statusAuth guards the worker status
// callback and may be nil.
func (h *TaskHandler) Routes(statusAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.CreateTask)
	r.Get("/", h.ListTasks)
	r.Post("/cancel-pending", h.CancelAllPending)
	r.Get("/by-task-id/{taskId}", h.GetTaskByExternalID)
	r.Get("/{id}", h.GetTask)
	r.Patch("/{id}/cancel", h.CancelTask)
	r.Group(func(r chi.Router) {
		if statusAuth != nil {
			r.Use(statusAuth)
		}
		r.Patch("/{id}/status", h.UpdateTaskStatus)
	})
	return r
}

// CreateTask handles POST /api/tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %w", domain.ErrValidation, err), "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %w", domain.ErrValidation, err), SanitizeValidationError(err))
		return
	}

	// Both were checked by the uuid validator.
	projectID := uuid.MustParse(req.ProjectID)
	deps := make([]uuid.UUID, 0, len(req.DependantOn))
	for _, dep := range req.DependantOn {
		deps = append(deps, uuid.MustParse(dep))
	}

	created, err := h.service.CreateTask(r.Context(), task.CreateTaskParams{
		ProjectID:      projectID,
		TaskType:       req.TaskType,
		Params:         req.Params,
		Status:         domain.TaskStatus(req.Status),
		DependantOn:    deps,
		OutputLocation: req.OutputLocation,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("task created via API", slog.String("task_id", created.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, created)
}

// ListTasks handles GET /api/tasks?projectId=...&status=...
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	projectID, err := getQueryUUID(r, "projectId")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	tasks, err := h.service.ListTasks(r.Context(), projectID, getStatusFilter(r))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, tasks)
}

// GetTask handles GET /api/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	t, err := h.service.GetTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, t)
}

// GetTaskByExternalID handles GET /api/tasks/by-task-id/{taskId}, where
// taskId is the worker's job identifier stored in params.task_id.
func (h *TaskHandler) GetTaskByExternalID(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetTaskByExternalID(r.Context(), chi.URLParam(r, "taskId"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, t)
}

// UpdateTaskStatus handles PATCH /api/tasks/{id}/status.
func (h *TaskHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req UpdateTaskStatusRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %w", domain.ErrValidation, err), "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %w", domain.ErrValidation, err), SanitizeValidationError(err))
		return
	}

	status := domain.TaskStatus(req.Status)
	if !status.IsValid() {
		HandleAPIError(w, r,
			domain.NewValidationError("status", "is not a valid task status", domain.ErrInvalidTaskStatus),
			fmt.Sprintf("Invalid status value: %q", req.Status))
		return
	}

	updated, err := h.service.UpdateTaskStatus(r.Context(), id, task.UpdateStatusParams{
		Status:         status,
		Reason:         req.Reason,
		OutputLocation: req.OutputLocation,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	attrs := []any{
		slog.String("task_id", id.String()),
		slog.String("status", string(updated.Status)),
	}
	if workerID, ok := shared.GetWorkerID(r.Context()); ok {
		attrs = append(attrs, slog.String("worker_id", workerID))
	}
	log.Debug("task status reported", attrs...)

	shared.RespondWithJSON(w, r, http.StatusOK, updated)
}

// CancelTask handles PATCH /api/tasks/{id}/cancel.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	cancelled, err := h.service.CancelTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, cancelled)
}

// CancelAllPending handles POST /api/tasks/cancel-pending.
func (h *TaskHandler) CancelAllPending(w http.ResponseWriter, r *http.Request) {
	var req CancelPendingRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %w", domain.ErrValidation, err), "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %w", domain.ErrValidation, err), SanitizeValidationError(err))
		return
	}

	count, err := h.service.CancelAllPending(r.Context(), uuid.MustParse(req.ProjectID))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := CancelPendingResponse{
		Message:        fmt.Sprintf("Successfully cancelled %d tasks.", count),
		CancelledCount: count,
	}
	if count == 0 {
		resp.Message = "No active tasks found for this project to cancel."
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
