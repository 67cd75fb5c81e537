package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when input or a domain entity fails validation.
	// This is usually wrapped in a ValidationError naming the offending field.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or missing.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidTaskStatus is returned for a status value outside the lifecycle enum.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrConflict is returned when an operation contradicts the current state of
	// an entity, such as moving a finished task to a different terminal status.
	ErrConflict = errors.New("conflict")
)

// ValidationError describes a single invalid field.
// It wraps a sentinel so callers can match it with errors.Is.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap returns the wrapped sentinel.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is makes every ValidationError match ErrValidation, whatever sentinel it wraps.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError for the given field.
// If err is nil, ErrValidation is wrapped.
func NewValidationError(field, message string, err error) *ValidationError {
	if err == nil {
		err = ErrValidation
	}
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// TransitionConflictError reports a rejected status change on a finished task.
type TransitionConflictError struct {
	From TaskStatus
	To   TaskStatus
}

// Error implements the error interface.
func (e *TransitionConflictError) Error() string {
	return fmt.Sprintf("task is already %s and cannot become %s", e.From, e.To)
}

// Unwrap lets errors.Is(err, ErrConflict) succeed.
func (e *TransitionConflictError) Unwrap() error {
	return ErrConflict
}
