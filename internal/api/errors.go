package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/reigh-app/reigh-api/internal/api/shared"
	"github.com/reigh-app/reigh-api/internal/domain"
	"github.com/reigh-app/reigh-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, shared.ErrEmptyBody):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err. Only messages
// built from domain values are passed through; everything else is generic.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErr *domain.ValidationError
	var conflictErr *domain.TransitionConflictError

	switch {
	case errors.As(err, &validationErr):
		return "Invalid request: " + validationErr.Error()

	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, store.ErrGenerationNotFound):
		return "Generation not found"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.As(err, &conflictErr):
		return "Status conflict: " + conflictErr.Error()

	case errors.Is(err, domain.ErrConflict):
		return "Task status conflict"

	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns validator errors into a short message naming
// the first offending field, without echoing the submitted value.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Field()
		if field == "" {
			field = strings.ToLower(fe.StructField())
		}
		return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(fe.Tag()))
	}
	if strings.HasPrefix(err.Error(), "invalid JSON body") {
		return "Invalid request format"
	}
	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "uuid":
		return "must be a UUID"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "url":
		return "must be a URL"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the error response for err. A non-empty message
// replaces the default safe message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), message, err)
}
