package service

import (
	"errors"
	"fmt"
)

// Workflow error codes. Every rejected submission carries one of these so
// the handler layer can pick an HTTP status without matching strings.
const (
	CodeNotFound           = "not_found"
	CodeExpired            = "expired"
	CodeExhausted          = "exhausted"
	CodeInvalid            = "invalid"
	CodeOutOfOrder         = "out_of_order"
	CodeValidationFailed   = "validation_failed"
	CodeMisconfigured      = "misconfigured"
	CodeStorageFailure     = "storage_failure"
	CodePersistenceFailure = "persistence_failure"
)

// Error is a workflow failure with a stable code and a message safe to show
// to the signer.
type Error struct {
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError builds a workflow error with a formatted message.
func NewError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a cause for logging; Message stays signer-safe.
func WrapError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// CodeOf extracts the workflow code from an error chain, or empty string.
func CodeOf(err error) string {
	var we *Error
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}
