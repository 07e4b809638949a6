// Package errs defines the gateway-wide error taxonomy. Every subsystem
// wraps failures in an *errs.Error tagged with a Kind so callers can branch
// on error category without parsing messages.
package errs

import (
	"errors"
	"fmt"
)

// Kind categorizes an error for monitoring, retry policy, and user-facing
// formatting.
type Kind string

const (
	KindConfiguration Kind = "CONFIGURATION"
	KindGateway       Kind = "GATEWAY"
	KindLLM           Kind = "LLM"
	KindTool          Kind = "TOOL"
	KindDatabase      Kind = "DATABASE"
	KindChannel       Kind = "CHANNEL"
	KindProto         Kind = "PROTO"
)

// Error is a structured error carrying a Kind, a human-readable message, the
// wrapped cause, and free-form context for logging.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// With attaches a key/value pair of debugging context and returns the
// receiver for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates a new *Error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Configuration(message string, cause error) *Error { return New(KindConfiguration, message, cause) }
func Gateway(message string, cause error) *Error       { return New(KindGateway, message, cause) }
func LLM(message string, cause error) *Error           { return New(KindLLM, message, cause) }
func Tool(message string, cause error) *Error          { return New(KindTool, message, cause) }
func Database(message string, cause error) *Error      { return New(KindDatabase, message, cause) }
func Channel(message string, cause error) *Error       { return New(KindChannel, message, cause) }
func Proto(message string, cause error) *Error         { return New(KindProto, message, cause) }

// KindOf extracts the Kind from err, or "" if err is not (or does not wrap)
// an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
