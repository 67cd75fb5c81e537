package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reigh-app/reigh-api/internal/api/shared"
	"github.com/reigh-app/reigh-api/internal/domain"
	"github.com/reigh-app/reigh-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"nil error", nil, http.StatusInternalServerError},
		{"validation error", domain.NewValidationError("status", "is bad", domain.ErrInvalidTaskStatus), http.StatusBadRequest},
		{"wrapped invalid entity", &store.StoreError{Operation: "create", Message: "bad", Err: store.ErrInvalidEntity}, http.StatusBadRequest},
		{"empty body", shared.ErrEmptyBody, http.StatusBadRequest},
		{"task not found", store.ErrTaskNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", store.ErrTaskNotFound), http.StatusNotFound},
		{"transition conflict", &domain.TransitionConflictError{From: domain.TaskStatusComplete, To: domain.TaskStatusFailed}, http.StatusConflict},
		{"duplicate", store.ErrGenerationExists, http.StatusConflict},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedStatus, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "An unexpected error occurred"},
		{"validation", domain.NewValidationError("project_id", "is required", domain.ErrInvalidID), "Invalid request: project_id is required"},
		{"task not found", store.ErrTaskNotFound, "Task not found"},
		{"generation not found", store.ErrGenerationNotFound, "Generation not found"},
		{"transition conflict", &domain.TransitionConflictError{From: domain.TaskStatusCancelled, To: domain.TaskStatusQueued},
			"Status conflict: task is already Cancelled and cannot become Queued"},
		{"internal", errors.New("pq: password authentication failed for user reigh"), "An unexpected error occurred"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, GetSafeErrorMessage(tc.err))
		})
	}
}

func TestSanitizeValidationError(t *testing.T) {
	type body struct {
		ProjectID string `json:"project_id" validate:"required,uuid"`
	}

	err := shared.ValidateRequest(&body{})
	assert.Equal(t, "Invalid project_id: required field", SanitizeValidationError(err))

	err = shared.ValidateRequest(&body{ProjectID: "not-a-uuid"})
	assert.Equal(t, "Invalid project_id: must be a UUID", SanitizeValidationError(err))

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("something else")))
}

func TestHandleAPIError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/tasks/x", nil)

	w := httptest.NewRecorder()
	HandleAPIError(w, req, store.ErrTaskNotFound, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Task not found"}`, w.Body.String())

	w = httptest.NewRecorder()
	HandleAPIError(w, req, domain.ErrValidation, "Invalid status value")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid status value"}`, w.Body.String())
}
