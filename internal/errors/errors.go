// Package errors defines the service error taxonomy shared by all
// marketplace operations.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a class of service failure.
type ErrorCode string

const (
	CodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	CodeForbidden       ErrorCode = "FORBIDDEN"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeInvalidState    ErrorCode = "INVALID_STATE"
	CodeValidation      ErrorCode = "VALIDATION_ERROR"
	CodeDependency      ErrorCode = "DEPENDENCY_FAILURE"
)

// ServiceError carries a code, an HTTP status and optional details.
type ServiceError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ServiceError) Unwrap() error { return e.cause }

// WithDetails attaches a key/value detail and returns the error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Unauthenticated reports a request with no valid session.
func Unauthenticated(message string) *ServiceError {
	if message == "" {
		message = "authentication required"
	}
	return &ServiceError{Code: CodeUnauthenticated, Message: message, HTTPStatus: http.StatusUnauthorized}
}

// Forbidden reports an authenticated actor lacking the required role.
func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "insufficient privileges"
	}
	return &ServiceError{Code: CodeForbidden, Message: message, HTTPStatus: http.StatusForbidden}
}

// NotFound reports a missing entity.
func NotFound(entity, id string) *ServiceError {
	return &ServiceError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s %s not found", entity, id),
		HTTPStatus: http.StatusNotFound,
	}
}

// InvalidState reports a transition that is not legal from the current
// status. The current status is always named so callers can surface it.
func InvalidState(message, current string) *ServiceError {
	e := &ServiceError{Code: CodeInvalidState, Message: message, HTTPStatus: http.StatusBadRequest}
	return e.WithDetails("current_status", current)
}

// Validation reports malformed input.
func Validation(message string) *ServiceError {
	return &ServiceError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusBadRequest}
}

// Dependency reports a row-store or downstream service failure. The
// outward message stays generic; the cause is kept for logging.
func Dependency(message string, cause error) *ServiceError {
	if message == "" {
		message = "internal error"
	}
	return &ServiceError{
		Code:       CodeDependency,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		cause:      cause,
	}
}

// GetServiceError extracts a *ServiceError from err, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// IsCode reports whether err is a ServiceError with the given code.
func IsCode(err error, code ErrorCode) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}
