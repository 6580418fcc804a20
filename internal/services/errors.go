package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can pick a response without
// inspecting error text.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindConflict          ErrorKind = "conflict"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindNotFound          ErrorKind = "not_found"
	KindForbidden         ErrorKind = "forbidden"
	KindExternal          ErrorKind = "external"
	KindInternal          ErrorKind = "internal"
)

// AppError is the single error type returned by services. Message is safe to
// show to end users; Err carries the diagnostic cause and is never rendered.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on kind so errors.Is(err, ErrConflict) works for any conflict.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is checks.
var (
	ErrValidation        = &AppError{Kind: KindValidation}
	ErrConflict          = &AppError{Kind: KindConflict}
	ErrInvalidTransition = &AppError{Kind: KindInvalidTransition}
	ErrNotFound          = &AppError{Kind: KindNotFound}
	ErrForbidden         = &AppError{Kind: KindForbidden}
	ErrExternal          = &AppError{Kind: KindExternal}
	ErrInternal          = &AppError{Kind: KindInternal}
)

func ValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

func ConflictError(message string) *AppError {
	return &AppError{Kind: KindConflict, Message: message}
}

func InvalidTransitionError(message string) *AppError {
	return &AppError{Kind: KindInvalidTransition, Message: message}
}

func NotFoundError(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

func ForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

func ExternalServiceError(message string, err error) *AppError {
	return &AppError{Kind: KindExternal, Message: message, Err: err}
}

func InternalError(err error) *AppError {
	return &AppError{Kind: KindInternal, Message: "An unexpected error occurred. Please try again later.", Err: err}
}

// KindOf reports the kind of err, treating anything untyped as internal.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
