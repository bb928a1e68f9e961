// Package corpuserr defines the error kinds surfaced by the analytical
// core and wraps them with stack traces the way the rest of the codebase
// wraps collaborator errors.
package corpuserr

import (
	"fmt"

	"github.com/mdobak/go-xerrors"
)

// Kind classifies an error the core can raise. See spec.md §7.
type Kind int

const (
	// InvalidConfig means a required configuration key was missing or
	// out of range.
	InvalidConfig Kind = iota
	// InvalidInput means a malformed persisted file, a truncated stream,
	// or an empty prototype set where one was required.
	InvalidInput
	// OutOfMemory means an internal allocation failed; the affected
	// operation aborts and yields no partial result.
	OutOfMemory
	// EmptyFeatureVector means extraction produced zero features. This
	// kind is used for warnings, not fatal errors.
	EmptyFeatureVector
	// IO means a collaborator reported a failure that is re-raised here.
	IO
)

func (k Kind) String() string {
	switch k {
	case InvalidConfig:
		return "invalid_config"
	case InvalidInput:
		return "invalid_input"
	case OutOfMemory:
		return "out_of_memory"
	case EmptyFeatureVector:
		return "empty_feature_vector"
	case IO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is a core error carrying a Kind alongside the wrapped cause.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a Kind-tagged error, wrapping cause with a captured stack
// trace via go-xerrors so callers logging with slog can attach it.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: xerrors.New(cause)}
}

// Newf builds a Kind-tagged error from a format string.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Errorf(format, args...))
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if ce, ok := err.(*Error); ok {
		e = ce
	} else {
		return false
	}
	return e.Kind == kind
}

// Warning is a non-fatal condition reported to a caller-supplied sink
// rather than returned as an error. EmptyFeatureVector is the only kind
// the core currently raises as a warning rather than an error.
type Warning struct {
	Kind    Kind
	Message string
}

// Sink receives warnings. Callers typically wire a *slog.Logger into one.
type Sink func(Warning)

// Warn reports w to sink if sink is non-nil; nil sinks silently discard,
// matching the reference implementation's behavior when verbosity is off.
func Warn(sink Sink, kind Kind, message string) {
	if sink == nil {
		return
	}
	sink(Warning{Kind: kind, Message: message})
}
