package config

import "errors"

// Configuration validation errors returned by Config.Validate.
//
// Design decision: sentinel errors let callers use errors.Is while the
// messages stay readable on the command line.
var (
	// ErrNoTarget is returned when render is called without any URL.
	ErrNoTarget = errors.New("no target specified: provide a URL or use --list")

	// ErrInvalidTimeout is returned when the navigation timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch concurrency is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrNoEndpoints is returned when no relay endpoint is configured.
	ErrNoEndpoints = errors.New("no relay endpoints configured")

	// ErrInvalidRateLimit is returned for a negative per-endpoint rate.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrUnknownReportFormat is returned for a report format other than text, markdown or json.
	ErrUnknownReportFormat = errors.New("unknown report format: use text, markdown or json")

	// ErrConflictingUpstream is returned when both --socks5 and --tor are given.
	ErrConflictingUpstream = errors.New("conflicting upstream: --socks5 and --tor cannot be used together")

	// ErrNoCharsets is returned when the charset allow-list is empty.
	ErrNoCharsets = errors.New("allowed charset list is empty")
)
