package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the domain layer. Repositories and use cases
// translate their failures into these so callers can branch with errors.Is
// without knowing the storage backend.
var (
	// ErrNotFound means the requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput means the caller passed arguments the operation
	// cannot act on, such as an empty symbol or a zero interval.
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed is the kind shared by all ValidationError values.
	ErrValidationFailed = errors.New("validation failed")
)

// ValidationError reports which field of an entity failed validation and why.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Is reports whether the target matches the validation-failed kind.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
