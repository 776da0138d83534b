// Package apperr defines the error taxonomy shared by the registration,
// review, issuance and verification services.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can render it without string matching.
type Kind string

const (
	Unauthorized    Kind = "unauthorized"
	NotFound        Kind = "not_found"
	InvalidInput    Kind = "invalid_input"
	AlreadyDone     Kind = "already_done"
	Denied          Kind = "denied"
	LockTimeout     Kind = "lock_timeout"
	IssuanceFailed  Kind = "issuance_failed"
	UpstreamFailure Kind = "upstream_failure"
	Internal        Kind = "internal"
)

// Error is a classified error with a client-safe message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, apperr.E(apperr.NotFound, "")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// E builds an error of the given kind.
func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or Internal for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the client-safe message of err. Unclassified errors are
// reported generically so internals do not leak.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
