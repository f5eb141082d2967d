// Package errz defines the error type raised by every stage of block
// compilation. A compile error carries a kind from a small fixed taxonomy
// and, where one is known, the block that caused it.
package errz

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of an error.
type ErrorKind int

const (
	// ErrStructural indicates an unknown block kind or a malformed block tree.
	ErrStructural ErrorKind = iota
	// ErrType indicates a value of the wrong type in a socket or statement position.
	ErrType
	// ErrEncoding indicates an instruction parameter outside the 20 bit range.
	ErrEncoding
	// ErrConvention indicates a native function called with two different stack deltas.
	ErrConvention
	// ErrBuilder indicates misuse of the code arena segment builder.
	ErrBuilder
	// ErrAnalysis indicates an inconsistent stack shape found by the analyzer.
	ErrAnalysis
	// ErrLayout indicates an image that does not fit the 16 bit header fields.
	ErrLayout
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrStructural:
		return "structural error"
	case ErrType:
		return "type error"
	case ErrEncoding:
		return "encoding error"
	case ErrConvention:
		return "convention error"
	case ErrBuilder:
		return "builder error"
	case ErrAnalysis:
		return "analysis error"
	case ErrLayout:
		return "layout error"
	default:
		return "error"
	}
}

// CompileError describes why a compilation failed.
type CompileError struct {
	Message  string
	Kind     ErrorKind
	NodeID   string
	NodeKind string
	Cause    error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.NodeKind == "" {
		return fmt.Sprintf("%s: %s", e.Kind.String(), e.Message)
	}
	return fmt.Sprintf("%s: %s (block %s %s)", e.Kind.String(), e.Message, e.NodeKind, e.NodeID)
}

// Unwrap returns the underlying cause of the error.
func (e *CompileError) Unwrap() error {
	return e.Cause
}

// New creates a CompileError with a formatted message.
func New(kind ErrorKind, format string, args ...any) *CompileError {
	return &CompileError{
		Message: fmt.Sprintf(format, args...),
		Kind:    kind,
	}
}

// WithCause wraps the error with a cause.
func (e *CompileError) WithCause(cause error) *CompileError {
	e.Cause = cause
	return e
}

// WithNode attaches the block that caused the error. A block already
// recorded is kept, so the innermost block wins.
func (e *CompileError) WithNode(id, kind string) *CompileError {
	if e.NodeKind == "" {
		e.NodeID = id
		e.NodeKind = kind
	}
	return e
}

// KindOf reports the kind of the first CompileError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

// Is reports whether err carries a CompileError of the given kind.
func Is(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
