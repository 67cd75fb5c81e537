package api

import (
	"encoding/json"

	"github.com/reigh-app/reigh-api/internal/domain"
)

// CreateTaskRequest is the payload for POST /api/tasks.
// Keys are snake_case, matching what the UI and workers already send.
type CreateTaskRequest struct {
	ProjectID      string          `json:"project_id"      validate:"required,uuid"`
	TaskType       string          `json:"task_type"       validate:"required,max=100"`
	Params         json.RawMessage `json:"params"          validate:"required"`
	Status         string          `json:"status"          validate:"omitempty,oneof=Pending Queued"`
	DependantOn    []string        `json:"dependant_on"    validate:"omitempty,max=100,dive,uuid"`
	OutputLocation string          `json:"output_location" validate:"omitempty,max=2048"`
}

// UpdateTaskStatusRequest is a worker's status report for PATCH /api/tasks/{id}/status.
type UpdateTaskStatusRequest struct {
	Status         string `json:"status"          validate:"required"`
	Reason         string `json:"reason"          validate:"omitempty,max=4000"`
	OutputLocation string `json:"output_location" validate:"omitempty,max=2048"`
}

// CancelPendingRequest is the payload for POST /api/tasks/cancel-pending.
type CancelPendingRequest struct {
	ProjectID string `json:"projectId" validate:"required,uuid"`
}

// CancelPendingResponse reports how many tasks a bulk cancel changed.
type CancelPendingResponse struct {
	Message        string `json:"message"`
	CancelledCount int    `json:"cancelledCount"`
}

// GenerationListResponse is one page of GET /api/generations.
type GenerationListResponse struct {
	Items      []*domain.Generation `json:"items"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
	Total      int                  `json:"total"`
	TotalPages int                  `json:"totalPages"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
