package orchestrator

import (
	"errors"
	"fmt"
)

// ErrorKind is the caller-visible classification of a discovery failure.
// It crosses the API boundary verbatim in the error envelope.
type ErrorKind string

const (
	KindCompanyNotFound     ErrorKind = "company_not_found"
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindBudgetExceeded      ErrorKind = "budget_exceeded"
	KindInternal            ErrorKind = "internal"
)

// Error pairs a kind with a wrapped cause. Deadline overruns are not
// errors: they produce a partial result instead.
type Error struct {
	Kind ErrorKind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Message returns the human-readable part without the kind prefix.
func (e *Error) Message() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf extracts the kind from an error chain, defaulting to internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
