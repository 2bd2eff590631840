package errx

import (
	"errors"
	"fmt"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "not found"
)

// Code is a machine-readable error code carried by every structured failure.
// Consumers branch on Code, never on message text.
type Code string

const (
	CodeTemplateNotFound Code = "TEMPLATE_NOT_FOUND"
	CodeDocumentNotFound Code = "DOCUMENT_NOT_FOUND"
	CodeInvalidReference Code = "INVALID_REFERENCE"
	CodeStorageError     Code = "STORAGE_ERROR"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeValidationError  Code = "VALIDATION_ERROR"
	CodeUnknownError     Code = "UNKNOWN_ERROR"
)

// Error wraps an underlying error with an HTTP status, a machine code and a
// safe message.
type Error struct {
	Err     error
	Status  int
	Code    Code
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the provided information.
func New(err error, status int, message string) *Error {
	return &Error{
		Err:     err,
		Status:  status,
		Code:    CodeUnknownError,
		Message: message,
	}
}

// WithCode returns the error with a specific machine code attached.
func (e *Error) WithCode(code Code) *Error {
	e.Code = code
	return e
}

// CodeOf extracts the machine code from an error chain, defaulting to
// CodeUnknownError when no Error is present.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return CodeUnknownError
}

// Is reports whether the target matches the underlying error or the Error itself.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to Error or the wrapped error in a chain.
func (e *Error) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**Error); ok {
		*t = e
		return true
	}
	return false
}
