package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an insert would violate a uniqueness rule.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrStatusMismatch is returned by a conditional status write when the
	// stored status no longer equals the expected prior status.
	ErrStatusMismatch = errors.New("status changed concurrently")

	// ErrTaskNotFound indicates that the requested task does not exist in the store.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrGenerationNotFound indicates that the requested generation does not exist.
	ErrGenerationNotFound = fmt.Errorf("%w: generation", ErrNotFound)

	// ErrGenerationExists indicates a generation of the same type is already
	// linked to the task.
	ErrGenerationExists = fmt.Errorf("%w: generation for task", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "task", "generation")
	Operation string // The operation that failed (e.g., "create", "set_status")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
