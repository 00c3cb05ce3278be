package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError carries an HTTP status code alongside the message returned to
// the caller. Op identifies the failing operation for logs only.
type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// InvalidInput reports a caller mistake that should not be retried.
func InvalidInput(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// PayloadTooLarge reports an upload exceeding the configured byte limit.
func PayloadTooLarge(op string, limitBytes int64) *AppError {
	return &AppError{
		Code:    http.StatusRequestEntityTooLarge,
		Message: fmt.Sprintf("File too large. Maximum: %dMB", limitBytes/(1024*1024)),
		Op:      op,
	}
}

// ToolTimeout reports an external tool that did not finish within budget.
func ToolTimeout(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusRequestTimeout,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// ToolFailed reports a nonzero exit from an external tool. The captured
// stderr tail travels in the message so callers can see the tool's own
// diagnostics.
func ToolFailed(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// ToolNotFound reports a missing executable. Fatal to the request, not
// the process.
func ToolNotFound(op string, tool string) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: fmt.Sprintf("%s not found. Check that it is installed and on PATH.", tool),
		Op:      op,
	}
}

// Upstream reports a failure in an external collaborator (video host
// metadata or download). The code depends on the cause.
func Upstream(op string, err error, message string, code int) *AppError {
	if code == 0 {
		code = http.StatusBadGateway
	}
	return &AppError{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// Internal reports an unexpected server-side failure.
func Internal(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// Code extracts the HTTP status for an error, defaulting to 500.
func Code(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
