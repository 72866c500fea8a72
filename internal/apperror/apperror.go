// Package apperror defines the error taxonomy shared by the bot's components.
//
// Every failure the conversation layer has to react to falls into one of the
// sentinel kinds below. Components return an *AppError (or wrap one with %w)
// and callers classify with errors.Is, never by comparing message strings.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrAccessDenied = errors.New("access denied")
	ErrGateway      = errors.New("analysis gateway failure")
	ErrLedger       = errors.New("ledger failure")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // human-readable message
	Field   string // optional: input field that failed validation
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found for %s", resource, key),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// AccessDenied reports a handle that the access gate refused.
// An empty handle is rendered as "<none>" so log lines stay readable.
func AccessDenied(handle string) *AppError {
	if handle == "" {
		handle = "<none>"
	}
	return &AppError{
		Err:     ErrAccessDenied,
		Message: fmt.Sprintf("access denied for %s", handle),
	}
}

// Gateway wraps a failed or empty language-model call.
// The cause stays reachable through errors.Unwrap on the message chain.
func Gateway(op string, cause error) *AppError {
	msg := fmt.Sprintf("analysis gateway: %s failed", op)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &AppError{Err: ErrGateway, Message: msg}
}

// Ledger wraps a storage failure surfaced to the conversation layer.
func Ledger(op string, cause error) *AppError {
	msg := fmt.Sprintf("ledger: %s failed", op)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &AppError{Err: ErrLedger, Message: msg}
}
