package pipeline

import "errors"

var (
	// ErrEmptyURL is returned by NormalizeURL for blank input.
	ErrEmptyURL = errors.New("URL is empty")

	// ErrInvalidURL is returned by NormalizeURL when no host can be found.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrUnsupportedScheme is returned for URLs with a scheme other than http or https.
	ErrUnsupportedScheme = errors.New("only http and https URLs are supported")

	// ErrNothingFetched is returned when a step runs without its input.
	ErrNothingFetched = errors.New("no fetched document")

	// ErrSuperseded is the cancellation cause of a navigation replaced by a newer one.
	ErrSuperseded = errors.New("superseded by a newer navigation")
)
