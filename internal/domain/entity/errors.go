package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")

	// ErrContractViolation indicates an external collaborator (LLM, embedder, search
	// client) returned a payload that does not satisfy its contract. The caller drops
	// the specific item; it never fails the enclosing batch.
	ErrContractViolation = errors.New("contract violation")

	// ErrDeadlineExceeded indicates a per-call or per-stage budget expired. The caller
	// abandons that unit of work and lets the scheduler retry it on the next pass.
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
