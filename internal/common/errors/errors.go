// Package errors provides the coded error taxonomy shared by the scoring
// service and its HTTP surface.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode is a stable, client-visible error identifier.
type ErrorCode string

const (
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeDegraded         ErrorCode = "DEGRADED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeCacheUnavailable         ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"

	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// AppError is a structured application error.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. Constructors
// ==========================

func NewUnauthorizedError(details string) *AppError {
	return newError(ErrCodeUnauthorized, "Missing or invalid credential", details, false, nil)
}

func NewValidationError(details string) *AppError {
	return newError(ErrCodeValidationFailed, "Request validation failed", details, false, nil)
}

func NewNotFoundError(resource, id string) *AppError {
	return newError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), fmt.Sprintf("id: %s", id), false, nil)
}

func NewAlreadyExistsError(resource, id string) *AppError {
	return newError(ErrCodeAlreadyExists, fmt.Sprintf("%s already exists", resource), fmt.Sprintf("id: %s", id), false, nil)
}

func NewForbiddenError(details string) *AppError {
	return newError(ErrCodeForbidden, "Not allowed to access this resource", details, false, nil)
}

// NewDegradedError marks a swallowed, non-fatal failure. It is logged and
// counted but never returned from a top-level operation.
func NewDegradedError(component string, err error) *AppError {
	return newError(ErrCodeDegraded, fmt.Sprintf("%s degraded", component), errString(err), true, err)
}

func NewDatabaseConnectionFailedError(err error) *AppError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", errString(err), true, err)
}

func NewQueryExecutionFailedError(operation string, err error) *AppError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("operation: %s, error: %s", operation, errString(err)), true, err)
}

func NewCacheUnavailableError(err error) *AppError {
	return newError(ErrCodeCacheUnavailable, "Cache unavailable", errString(err), true, err)
}

func NewSearchQueryFailedError(index string, err error) *AppError {
	return newError(ErrCodeSearchQueryFailed, "Search query error",
		fmt.Sprintf("index: %s, error: %s", index, errString(err)), true, err)
}

func NewExternalServiceError(service string, err error) *AppError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), errString(err), true, err)
}

func NewTimeoutError(service string, err error) *AppError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), errString(err), true, err)
}

func NewInternalError(err error) *AppError {
	return newError(ErrCodeInternal, "Unexpected error", errString(err), false, err)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 3. Inspection
// ==========================

// As returns the first *AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the error code, or ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

func IsNotFound(err error) bool     { return err != nil && CodeOf(err) == ErrCodeNotFound }
func IsValidation(err error) bool   { return err != nil && CodeOf(err) == ErrCodeValidationFailed }
func IsForbidden(err error) bool    { return err != nil && CodeOf(err) == ErrCodeForbidden }
func IsUnauthorized(err error) bool { return err != nil && CodeOf(err) == ErrCodeUnauthorized }

// HTTPStatus maps an error code to the status returned by the API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadyExists:
		return http.StatusAlreadyReported
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeExternalService, ErrCodeDatabaseConnectionFailed, ErrCodeCacheUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeUnauthorized || code == ErrCodeForbidden:
		return "AUTH"
	case code == ErrCodeValidationFailed:
		return "VALIDATION"
	case code == ErrCodeNotFound || code == ErrCodeAlreadyExists:
		return "STATE"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "CACHE"):
		return "STORAGE"
	case code == ErrCodeExternalService || code == ErrCodeTimeout:
		return "EXTERNAL"
	default:
		return "OTHER"
	}
}
