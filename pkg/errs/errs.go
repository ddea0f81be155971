// Package errs defines the error kinds the librarian surfaces across the
// RPC boundary, the catalog, and the background task manager. Every error
// that crosses a component boundary should be one of these kinds so callers
// can make routing decisions (retry, 400, log-and-drop) without string
// matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for the purposes of RPC-boundary handling and
// retry policy. Never compare on the formatted message.
type Kind string

const (
	// BadRequest covers missing/malformed arguments, bad searches, unknown
	// clauses, and wrong payload types. Surfaced to the caller verbatim.
	BadRequest Kind = "bad_request"
	// AuthFailed covers a missing or invalid authenticator. Surfaced with a
	// generic message; never echoes the credential back.
	AuthFailed Kind = "auth_failed"
	// NotFound covers a missing file, store, observation, or session.
	NotFound Kind = "not_found"
	// Conflict covers a duplicate session, a duplicate instance on commit,
	// or concurrent staging to the same destination.
	Conflict Kind = "conflict"
	// InsufficientCapacity means no store can hold the requested size.
	InsufficientCapacity Kind = "insufficient_capacity"
	// StoreUnavailable means the underlying store driver call failed.
	StoreUnavailable Kind = "store_unavailable"
	// Transient means a transactional commit lost an optimistic race; the
	// caller may retry.
	Transient Kind = "transient"
	// Internal means an assertion or invariant was violated. Logged with a
	// traceback; surfaced to the caller as a generic message.
	Internal Kind = "internal"
)

// Error is the librarian's standard error type. It always carries a Kind so
// that callers - the RPC dispatcher chief among them - can decide how to
// respond without inspecting the message text.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an existing error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

func BadRequestf(format string, args ...any) *Error {
	return New(BadRequest, format, args...)
}

func AuthFailedf(format string, args ...any) *Error {
	return New(AuthFailed, format, args...)
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, format, args...)
}

func Conflictf(format string, args ...any) *Error {
	return New(Conflict, format, args...)
}

func InsufficientCapacityf(format string, args ...any) *Error {
	return New(InsufficientCapacity, format, args...)
}

func StoreUnavailablef(format string, args ...any) *Error {
	return New(StoreUnavailable, format, args...)
}

func Transientf(format string, args ...any) *Error {
	return New(Transient, format, args...)
}

func Internalf(format string, args ...any) *Error {
	return New(Internal, format, args...)
}

// KindOf extracts the Kind of err, walking the Unwrap chain. Errors that are
// not *Error report Internal, since something crossed a boundary without
// being classified.
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

// Is reports whether err (or anything it wraps) is an *Error of kind k.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}
