package charset

import (
	"errors"
	"fmt"
)

// ErrUnsupportedCharset is returned by Decode when the label has no known decoder.
var ErrUnsupportedCharset = errors.New("unsupported charset")

// DecodeError reports that a body could not be decoded with the named charset.
// It is recovered inside the package by falling back to UTF-8 and is only
// visible to callers of Decode.
type DecodeError struct {
	// Name is the charset label that failed.
	Name string

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode as %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
