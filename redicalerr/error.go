// Package redicalerr defines the engine's typed error kinds: a small struct
// carrying a kind, a message, and an Unwrap-able cause.
package redicalerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into a small set of dispatcher-facing categories.
type Kind int

const (
	// Parse indicates malformed iCal content.
	Parse Kind = iota
	// Schema indicates semantically invalid but well-formed content.
	Schema
	// Missing indicates a calendar or event was not found.
	Missing
	// IndexDisabled indicates a query required an indexed lookup while
	// indexing was off.
	IndexDisabled
	// Timeout indicates a query exceeded its wall-clock budget.
	Timeout
	// Internal indicates an invariant failure; the triggering operation is
	// rolled back.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Parse:
		return "parse"
	case Schema:
		return "schema"
	case Missing:
		return "missing"
	case IndexDisabled:
		return "index-disabled"
	case Timeout:
		return "timeout"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the engine's error type. Property names offending a Schema error
// belong in Message; the position of a Parse error goes in Offset.
type Error struct {
	Kind    Kind
	Message string
	Offset  int // byte offset into the source content, -1 if not applicable
	Err     error
}

// New constructs an Error of the given kind with a formatted message.
func New(kind Kind, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...), Offset: -1}
}

// Wrap constructs an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, err error, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...), Offset: -1, Err: err}
}

// AtOffset sets the byte offset a Parse error occurred at and returns the
// receiver for chaining.
func (e *Error) AtOffset(offset int) *Error {
	e.Offset = offset
	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("redical: %s: %s", e.Kind, e.Message)
	if e.Offset >= 0 {
		s = fmt.Sprintf("%s (at byte %d)", s, e.Offset)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", s, e.Err)
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err carries the given Kind, matching the errors.Is
// contract used throughout the engine's command layer.
func Is(err error, kind Kind) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}
