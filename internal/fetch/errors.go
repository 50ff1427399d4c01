package fetch

import (
	"errors"
	"fmt"

	"github.com/nao1215/relayview/internal/model"
)

var (
	// ErrAllEndpointsFailed matches any *RetrievalError with errors.Is.
	ErrAllEndpointsFailed = errors.New("all relay endpoints failed")

	// ErrNoEndpoints is the cause recorded when no endpoint is configured.
	ErrNoEndpoints = errors.New("no relay endpoints configured")

	// ErrRelayStatus is returned for a non-2xx relay response.
	ErrRelayStatus = errors.New("relay returned non-success status")

	// ErrBodyTooLarge is returned when a relay body exceeds the size limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")

	// ErrInvalidEndpoint is returned by ParseEndpoints for a prefix that is
	// not an absolute http(s) URL.
	ErrInvalidEndpoint = errors.New("invalid relay endpoint")
)

// RetrievalError is returned by Fetch when every endpoint failed.
type RetrievalError struct {
	// Target is the URL that could not be retrieved.
	Target string

	// Tried is the number of endpoints attempted.
	Tried int

	// Last is the failure of the last endpoint tried.
	Last error

	// Attempts lists every trial in order.
	Attempts []model.Attempt
}

// Error implements error.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("failed to retrieve %s: %d relay endpoint(s) tried: %v", e.Target, e.Tried, e.Last)
}

// Unwrap returns the last endpoint failure.
func (e *RetrievalError) Unwrap() error {
	return e.Last
}

// Is reports whether target is ErrAllEndpointsFailed.
func (e *RetrievalError) Is(target error) bool {
	return target == ErrAllEndpointsFailed
}
