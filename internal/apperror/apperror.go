package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure taxonomy. Every user-facing action maps
// whatever went wrong internally onto exactly one of these before replying.
var (
	ErrTokenRejected = errors.New("token rejected")
	ErrTransient     = errors.New("transient failure")
	ErrCorruptSecret = errors.New("corrupt or tampered secret")
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
)

type AppError struct {
	Err     error  // sentinel cause
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// TokenRejected returns an AppError for a credential the remote API refused.
// The session layer reacts by marking the stored token invalid and re-prompting.
func TokenRejected(message string) *AppError {
	return &AppError{
		Err:     ErrTokenRejected,
		Message: message,
	}
}

// Transient returns an AppError for a failure worth retrying (network,
// timeout, 5xx). Handlers treat it as non-mutating.
func Transient(message string) *AppError {
	return &AppError{
		Err:     ErrTransient,
		Message: message,
	}
}

func CorruptSecret(message string) *AppError {
	return &AppError{
		Err:     ErrCorruptSecret,
		Message: message,
	}
}
