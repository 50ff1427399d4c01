package rewrite

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBase is returned when the base URL is not absolute.
	ErrInvalidBase = errors.New("base URL must be absolute")

	// ErrNilDocument is returned when Rewrite or Render receives no document.
	ErrNilDocument = errors.New("document is nil")
)

// ElementRewriteError describes one element whose URL could not be rewritten.
// These errors are logged and the element is skipped.
type ElementRewriteError struct {
	// Element is the tag name.
	Element string

	// Attr is the attribute being rewritten.
	Attr string

	// Value is the original attribute value.
	Value string

	// Err is the parse failure.
	Err error
}

// Error implements error.
func (e *ElementRewriteError) Error() string {
	return fmt.Sprintf("rewrite <%s %s=%q>: %v", e.Element, e.Attr, e.Value, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ElementRewriteError) Unwrap() error {
	return e.Err
}
