package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError represents a service-level error with context
type ServiceError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Details    string `json:"details,omitempty"`
	Cause      error  `json:"-"` // Original error, not exposed in JSON
}

func (e ServiceError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error
func NewServiceError(code, message string) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewServiceErrorWithCause creates a service error that wraps another error
func NewServiceErrorWithCause(code, message string, cause error) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		Cause:      cause,
		StatusCode: http.StatusInternalServerError,
	}
}

// GetServiceError extracts a ServiceError from an error chain
func GetServiceError(err error) (ServiceError, bool) {
	var serviceErr ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return ServiceError{}, false
}

// HasCode reports whether err is a ServiceError carrying code
func HasCode(err error, code string) bool {
	serviceErr, ok := GetServiceError(err)
	return ok && serviceErr.Code == code
}

// Submission failures
func NewTransportFailureError(cause error) error {
	return ServiceError{
		Code:       ErrCodeTransportFailure,
		Message:    "SOS endpoint unreachable",
		Cause:      cause,
		StatusCode: http.StatusServiceUnavailable,
	}
}

// NewServerRejectedError records the upstream status in the message; the
// error itself renders as 502 on the local API.
func NewServerRejectedError(statusCode int, details string) error {
	return ServiceError{
		Code:       ErrCodeServerRejected,
		Message:    fmt.Sprintf("SOS endpoint rejected request with status %d", statusCode),
		Details:    details,
		StatusCode: http.StatusBadGateway,
	}
}

func NewTimeoutError(resource string, cause error) error {
	return ServiceError{
		Code:       ErrCodeTimeout,
		Message:    fmt.Sprintf("%s did not respond in time", resource),
		Cause:      cause,
		StatusCode: http.StatusGatewayTimeout,
	}
}

func NewPermissionDeniedError(resource string) error {
	return ServiceError{
		Code:       ErrCodePermissionDenied,
		Message:    fmt.Sprintf("%s access denied", resource),
		StatusCode: http.StatusForbidden,
	}
}

func NewQueueCorruptionError(cause error) error {
	return ServiceError{
		Code:       ErrCodeQueueCorruption,
		Message:    "Offline alert queue is unreadable",
		Cause:      cause,
		StatusCode: http.StatusInternalServerError,
	}
}

func NewNotFoundError(resource string) error {
	return ServiceError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func NewConflictError(message string) error {
	return ServiceError{
		Code:       ErrCodeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewValidationError(details string) error {
	return ServiceError{
		Code:       ErrCodeValidation,
		Message:    "Validation failed",
		Details:    details,
		StatusCode: http.StatusBadRequest,
	}
}

func NewDatabaseError(operation string, cause error) error {
	return ServiceError{
		Code:       ErrCodeDatabase,
		Message:    fmt.Sprintf("Database operation failed: %s", operation),
		Cause:      cause,
		StatusCode: http.StatusInternalServerError,
	}
}

func IsTransportFailure(err error) bool { return HasCode(err, ErrCodeTransportFailure) }
func IsServerRejected(err error) bool   { return HasCode(err, ErrCodeServerRejected) }
func IsTimeout(err error) bool          { return HasCode(err, ErrCodeTimeout) }
func IsNotFound(err error) bool         { return HasCode(err, ErrCodeNotFound) }

// Error code constants
const (
	ErrCodeTransportFailure = "TRANSPORT_FAILURE"
	ErrCodeServerRejected   = "SERVER_REJECTED"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeQueueCorruption  = "QUEUE_CORRUPTION"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeDatabase         = "DATABASE_ERROR"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// Common error instances
var (
	ErrNoActiveSession = NewConflictError("No active SOS to cancel")
	ErrSyncInProgress  = NewConflictError("Sync already in progress")
)
