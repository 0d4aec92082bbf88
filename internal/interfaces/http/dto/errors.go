package dto

import (
	"net/http"

	"github.com/permitflow/backend/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodePersistence is returned when the store failed; the request may be retried
	ErrCodePersistence = "ERR_PERSISTENCE"
)

// Validation error codes
const (
	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	// ErrCodeActionInProgress is returned while another collections action
	// holds the invoice lock
	ErrCodeActionInProgress = "ERR_ACTION_IN_PROGRESS"
)

// Business rule error codes
const (
	ErrCodeInvalidTransition   = "ERR_INVALID_TRANSITION"
	ErrCodeActionNotAllowed    = "ERR_ACTION_NOT_ALLOWED"
	ErrCodeInsufficientBalance = "ERR_INSUFFICIENT_BALANCE"
)

// Input error codes
const (
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:     http.StatusInternalServerError,
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodePersistence: http.StatusServiceUnavailable,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeActionInProgress:    http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidTransition:   http.StatusUnprocessableEntity,
	ErrCodeActionNotAllowed:    http.StatusUnprocessableEntity,
	ErrCodeInsufficientBalance: http.StatusUnprocessableEntity,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	shared.CodeNotFound:            ErrCodeNotFound,
	shared.CodeInvalidInput:        ErrCodeInvalidInput,
	shared.CodeValidation:          ErrCodeValidation,
	shared.CodeInvalidTransition:   ErrCodeInvalidTransition,
	shared.CodeInsufficientBalance: ErrCodeInsufficientBalance,
	shared.CodePersistenceFailure:  ErrCodePersistence,
	shared.CodeConcurrencyConflict: ErrCodeConcurrencyConflict,
	shared.CodeActionInProgress:    ErrCodeActionInProgress,
	shared.CodeActionNotAllowed:    ErrCodeActionNotAllowed,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format or unknown pass through as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
