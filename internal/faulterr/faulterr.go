// Package faulterr gives the six error kinds every layer can surface a
// concrete Go type, so callers can branch on Kind instead of string
// matching or a growing set of sentinel values.
package faulterr

import "fmt"

// Kind tags the category of failure a component produced.
type Kind string

const (
	KindMalformedEvent     Kind = "malformed_event"
	KindStorageUnavailable Kind = "storage_unavailable"
	KindStorageTimeout     Kind = "storage_timeout"
	KindLLMUnavailable     Kind = "llm_unavailable"
	KindSinkUnavailable    Kind = "sink_unavailable"
	KindInternalFault      Kind = "internal_fault"
)

// Error wraps an underlying cause with a Kind, letting upstream code
// decide degrade-vs-propagate policy (§7) without parsing messages.
type Error struct {
	Kind Kind
	Op   string // component/operation that produced the error, e.g. "historystore.velocity"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a faulterr.Error for the given kind/operation.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Is reports whether err is a faulterr.Error of the given kind.
func Is(err error, kind Kind) bool {
	fe, ok := err.(*Error)
	if !ok {
		return false
	}
	return fe.Kind == kind
}

// StorageUnavailable wraps cause as a storage_unavailable fault.
func StorageUnavailable(op string, cause error) *Error {
	return New(KindStorageUnavailable, op, cause)
}

// StorageTimeout wraps cause as a storage_timeout fault.
func StorageTimeout(op string, cause error) *Error {
	return New(KindStorageTimeout, op, cause)
}

// LLMUnavailable wraps cause as an llm_unavailable fault.
func LLMUnavailable(op string, cause error) *Error {
	return New(KindLLMUnavailable, op, cause)
}

// SinkUnavailable wraps cause as a sink_unavailable fault.
func SinkUnavailable(op string, cause error) *Error {
	return New(KindSinkUnavailable, op, cause)
}

// InternalFault wraps cause as an internal_fault.
func InternalFault(op string, cause error) *Error {
	return New(KindInternalFault, op, cause)
}

// MalformedEvent wraps cause as a malformed_event fault.
func MalformedEvent(op string, cause error) *Error {
	return New(KindMalformedEvent, op, cause)
}
