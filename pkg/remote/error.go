package remote

import (
	"fmt"
)

// Kind classifies a remote call failure; the orchestrator decides
// between retry, compensation and conflict resolution based on it
type Kind uint8

const (
	KUnknown Kind = iota

	// KTransient covers throttling, timeouts and network failures;
	// safe to retry the individual call with backoff
	KTransient

	// KPermanent is an irrecoverable remote rejection (malformed
	// input, denied request); retrying will not help
	KPermanent

	// KConflict signals an idempotency or ownership collision
	// (resource already exists, resource still referenced)
	KConflict

	// KNotFound means the referenced remote resource does not exist
	KNotFound
)

func (k Kind) String() string {
	switch k {
	case KTransient:
		return "transient"
	case KPermanent:
		return "permanent"
	case KConflict:
		return "conflict"
	case KNotFound:
		return "not found"
	default:
		return fmt.Sprintf("unknown kind: %d", k)
	}
}

// Error is a remote call failure tagged with its kind and the
// operation that produced it
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failure", e.Op, e.Kind)
	}

	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
}

// Cause returns the underlying error (pkg/errors causer contract)
func (e *Error) Cause() error { return e.Err }

// Unwrap returns the underlying error
func (e *Error) Unwrap() error { return e.Err }

// NewError tags err with a kind and operation name
func NewError(k Kind, op string, err error) *Error {
	return &Error{Kind: k, Op: op, Err: err}
}

// Transient tags err as a retryable failure
func Transient(op string, err error) *Error { return NewError(KTransient, op, err) }

// Permanent tags err as an irrecoverable failure
func Permanent(op string, err error) *Error { return NewError(KPermanent, op, err) }

// Conflict tags err as an idempotency/ownership collision
func Conflict(op string, err error) *Error { return NewError(KConflict, op, err) }

// NotFound tags err as a missing-resource failure
func NotFound(op string, err error) *Error { return NewError(KNotFound, op, err) }

// KindOf walks the cause chain and returns the kind of the first
// tagged remote error it finds, or KUnknown
func KindOf(err error) Kind {
	for err != nil {
		if re, ok := err.(*Error); ok {
			return re.Kind
		}

		cause, ok := err.(interface{ Cause() error })
		if !ok {
			return KUnknown
		}

		err = cause.Cause()
	}

	return KUnknown
}

func IsTransient(err error) bool { return KindOf(err) == KTransient }
func IsPermanent(err error) bool { return KindOf(err) == KPermanent }
func IsConflict(err error) bool  { return KindOf(err) == KConflict }
func IsNotFound(err error) bool  { return KindOf(err) == KNotFound }
