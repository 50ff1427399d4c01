package pipeline

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL turns user input into the absolute URL to fetch.
// Surrounding space and any fragment are dropped, and https:// is prefixed
// when the input has no http or https scheme.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyURL
	}
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = strings.TrimSpace(s[:i])
		if s == "" {
			return "", ErrEmptyURL
		}
	}

	if !hasHTTPScheme(s) {
		if i := strings.Index(s, "://"); i > 0 {
			return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, s[:i])
		}
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
	}
	return u.String(), nil
}

// IsNavigable reports whether a URL received from a rewritten document may
// start a new navigation.
func IsNavigable(raw string) bool {
	return hasHTTPScheme(strings.TrimSpace(raw))
}

// hasHTTPScheme reports whether s starts with http:// or https://, ignoring case.
func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
