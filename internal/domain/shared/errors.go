package shared

import (
	"errors"
	"fmt"
)

// Error codes used across the invoicing, retainer and collections contexts
const (
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodePersistenceFailure  = "PERSISTENCE_FAILURE"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeActionInProgress    = "ACTION_IN_PROGRESS"
	CodeActionNotAllowed    = "ACTION_NOT_ALLOWED"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface. The cause is included for logs;
// Message alone is safe to show to API clients.
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code.
// This lets callers match with errors.Is(err, shared.ErrNotFound).
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a VALIDATION_ERROR domain error
func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}

// NewInvalidTransitionError reports an illegal status change
func NewInvalidTransitionError(from, to string) *DomainError {
	return NewDomainError(CodeInvalidTransition, fmt.Sprintf("Cannot transition from %s to %s", from, to))
}

// NewPersistenceError wraps a storage-layer error. Message names only the
// operation; the driver error stays reachable through errors.Unwrap and Error.
func NewPersistenceError(op string, err error) *DomainError {
	return &DomainError{
		Code:    CodePersistenceFailure,
		Message: fmt.Sprintf("Storage failure during %s", op),
		cause:   err,
	}
}

// IsCode reports whether err is (or wraps) a DomainError with the given code
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrInsufficientBalance = NewDomainError(CodeInsufficientBalance, "Insufficient balance available")
	ErrActionInProgress    = NewDomainError(CodeActionInProgress, "Another collections action is in progress for this invoice")
)
