package errors

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/lib/pq"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
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

// StatusCode maps the error code onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrConflict
)

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: ExtractMessage(err),
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
		Err:     err,
	}
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

// FromStorage wraps a repository error, turning missing rows into NotFound.
func FromStorage(resource string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return NotFound(resource, err)
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	return Internal(err)
}

// ExtractMessage returns a user-facing message for any failure value. It
// checks a direct message first, then a description, then details, and falls
// back to a raw serialisation.
func ExtractMessage(v interface{}) string {
	if v == nil {
		return "unknown error"
	}

	if err, ok := v.(error); ok {
		var appErr *AppError
		if stderrors.As(err, &appErr) && appErr.Message != "" {
			return appErr.Message
		}
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) {
			if pqErr.Message != "" {
				return pqErr.Message
			}
			if pqErr.Detail != "" {
				return pqErr.Detail
			}
		}
		if msg := err.Error(); msg != "" {
			return msg
		}
	}

	if m, ok := v.(map[string]interface{}); ok {
		for _, key := range []string{"message", "error_description", "details"} {
			if s, ok := m[key].(string); ok && s != "" {
				return s
			}
		}
	}

	if s, ok := v.(string); ok && s != "" {
		return s
	}

	if raw, err := json.Marshal(v); err == nil {
		return string(raw)
	}
	return fmt.Sprint(v)
}
