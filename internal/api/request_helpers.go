package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/reigh-app/reigh-api/internal/domain"
)

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}

	return id, nil
}

// getQueryUUID extracts and parses a required UUID query parameter.
func getQueryUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	raw := r.URL.Query().Get(paramName)
	if raw == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}

	return id, nil
}

// getQueryInt returns an integer query parameter, or 0 when it is absent or
// not a number.
func getQueryInt(r *http.Request, paramName string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(paramName))
	if err != nil {
		return 0
	}
	return n
}

// getStatusFilter collects status filter values from both the status and
// status[] query forms. Unknown values are dropped.
func getStatusFilter(r *http.Request) []domain.TaskStatus {
	query := r.URL.Query()
	raw := append(append([]string{}, query["status"]...), query["status[]"]...)

	statuses := make([]domain.TaskStatus, 0, len(raw))
	seen := make(map[domain.TaskStatus]struct{}, len(raw))
	for _, value := range raw {
		status := domain.TaskStatus(value)
		if !status.IsValid() {
			continue
		}
		if _, ok := seen[status]; ok {
			continue
		}
		seen[status] = struct{}{}
		statuses = append(statuses, status)
	}
	return statuses
}
