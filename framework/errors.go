// Package framework hosts the foundational contracts that every planning,
// routing, and execution component depends on: the error taxonomy, the
// LanguageModel interface, the tool registry, and the stream event variants.
package framework

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the platform's failure categories. The
// HTTP layer maps kinds onto status codes, so every error that can surface to
// a caller should carry one.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindInvalidState     Kind = "invalid_state"
	KindMissingComponent Kind = "missing_component"
	KindValidation       Kind = "validation"
	KindSandboxViolation Kind = "sandbox_violation"
	KindAgent            Kind = "agent_error"
	KindDependency       Kind = "dependency_error"
	KindExecution        Kind = "execution_error"
	KindInternal         Kind = "internal"
)

// Error is the concrete error type used across the platform. It wraps an
// optional cause so errors.Is/errors.As keep working through the taxonomy.
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

// Unwrap exposes the cause for errors.Is chains.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches two taxonomy errors by kind, which lets callers write
// errors.Is(err, framework.ErrNotFound) without caring about the message.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Msg == "" && other.Kind == e.Kind
	}
	return false
}

// Sentinel values for errors.Is comparisons. Each carries only a kind.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrInvalidState     = &Error{Kind: KindInvalidState}
	ErrMissingComponent = &Error{Kind: KindMissingComponent}
	ErrValidation       = &Error{Kind: KindValidation}
	ErrSandboxViolation = &Error{Kind: KindSandboxViolation}
	ErrAgent            = &Error{Kind: KindAgent}
	ErrDependency       = &Error{Kind: KindDependency}
	ErrExecution        = &Error{Kind: KindExecution}
	ErrInternal         = &Error{Kind: KindInternal}
)

// NotFoundf builds a not-found error.
func NotFoundf(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// InvalidStatef signals a state-machine precondition failure.
func InvalidStatef(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

// MissingComponentf signals a broken ancestor chain in the task hierarchy.
func MissingComponentf(format string, args ...interface{}) error {
	return &Error{Kind: KindMissingComponent, Msg: fmt.Sprintf(format, args...)}
}

// Validationf signals well-formed input with rejected values.
func Validationf(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// SandboxViolationf signals a filesystem path escaping the allowed base.
func SandboxViolationf(format string, args ...interface{}) error {
	return &Error{Kind: KindSandboxViolation, Msg: fmt.Sprintf(format, args...)}
}

// AgentErr wraps an LLM failure that survived the retry budget.
func AgentErr(msg string, cause error) error {
	return &Error{Kind: KindAgent, Msg: msg, Cause: cause}
}

// DependencyErrf signals execution blocked on an unsatisfied sibling.
func DependencyErrf(format string, args ...interface{}) error {
	return &Error{Kind: KindDependency, Msg: fmt.Sprintf(format, args...)}
}

// ExecutionErr wraps an executor failure. The execution engine converts these
// into FAILED status updates instead of propagating them to the request.
func ExecutionErr(msg string, cause error) error {
	return &Error{Kind: KindExecution, Msg: msg, Cause: cause}
}

// Internalf is the catch-all; the HTTP layer logs these with stack context.
func Internalf(format string, args ...interface{}) error {
	return &Error{Kind: KindInternal, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from any error, defaulting to KindInternal for
// errors born outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
