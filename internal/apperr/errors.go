// Package apperr defines the error kinds surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers.
type Kind string

const (
	KindNotFound         Kind = "NotFound"
	KindUnauthorized     Kind = "Unauthorized"
	KindInvalidState     Kind = "InvalidState"
	KindSlotUnavailable  Kind = "SlotUnavailable"
	KindCapacityExceeded Kind = "CapacityExceeded"
	KindValidation       Kind = "ValidationError"
	KindTooLateToCancel  Kind = "TooLateToCancel"
	KindStore            Kind = "StoreError"
)

// Error is a classified, human-readable failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of err. Unclassified errors are store errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStore
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message for err.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error, please retry later"
}

func NotFound(what string) *Error {
	return Newf(KindNotFound, "%s not found", what)
}

func Unauthorized(msg string) *Error {
	return New(KindUnauthorized, msg)
}

func InvalidState(msg string) *Error {
	return New(KindInvalidState, msg)
}

func Validation(msg string) *Error {
	return New(KindValidation, msg)
}

func Store(op string, err error) *Error {
	return Wrap(KindStore, "storage failure during "+op, err)
}
