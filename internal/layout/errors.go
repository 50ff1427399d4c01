package layout

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFrameset is returned by Reconstruct for a document without a frameset.
	ErrNoFrameset = errors.New("document has no frameset")

	// ErrInvalidBase is returned when the base URL is not absolute.
	ErrInvalidBase = errors.New("base URL must be absolute")

	// ErrTooDeep is the cause recorded for a pane nested beyond MaxDepth.
	ErrTooDeep = errors.New("frameset nesting too deep")
)

// PaneRetrievalError describes a pane replaced by a placeholder.
type PaneRetrievalError struct {
	// URL is the absolute pane source, or the raw src when it did not resolve.
	URL string

	// Err is the cause.
	Err error
}

// Error implements error.
func (e *PaneRetrievalError) Error() string {
	return fmt.Sprintf("frame %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PaneRetrievalError) Unwrap() error {
	return e.Err
}
