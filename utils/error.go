package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies business errors so the HTTP layer can map them to a
// status code without inspecting message strings.
type ErrorKind string

const (
	ErrorKindValidation    ErrorKind = "validation"
	ErrorKindNotFound      ErrorKind = "not_found"
	ErrorKindConflict      ErrorKind = "conflict"
	ErrorKindAuthorization ErrorKind = "authorization"
	ErrorKindInternal      ErrorKind = "internal"
)

type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
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

func ValidationError(format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFoundError(format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindNotFound, Message: fmt.Sprintf(format, args...)}
}

func ConflictError(format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindConflict, Message: fmt.Sprintf(format, args...)}
}

func AuthorizationError(format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindAuthorization, Message: fmt.Sprintf(format, args...)}
}

func InternalError(message string, err error) *AppError {
	return &AppError{Kind: ErrorKindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err, or ErrorKindInternal for untyped errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ErrorKindInternal
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case ErrorKindValidation:
		return http.StatusBadRequest
	case ErrorKindNotFound:
		return http.StatusNotFound
	case ErrorKindConflict:
		return http.StatusConflict
	case ErrorKindAuthorization:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

var ErrorRecordNotFound = &AppError{Kind: ErrorKindNotFound, Message: "record not found"}
