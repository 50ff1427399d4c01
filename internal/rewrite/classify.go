package rewrite

import (
	"net/url"
	"strings"
)

// LinkClass is the classification of an anchor's destination relative to
// the page being displayed.
type LinkClass int

const (
	// LinkNonNavigable is an empty, script or unparseable href.
	LinkNonNavigable LinkClass = iota

	// LinkSameOrigin is a link to the page's host or one of its subdomains.
	LinkSameOrigin

	// LinkCrossOrigin is a link to any other host.
	LinkCrossOrigin
)

// String returns the class name.
func (c LinkClass) String() string {
	switch c {
	case LinkSameOrigin:
		return "same-origin"
	case LinkCrossOrigin:
		return "cross-origin"
	default:
		return "non-navigable"
	}
}

// Classify resolves href against base and classifies the result.
// An invalid base or href yields LinkNonNavigable.
func Classify(href, base string) LinkClass {
	b, err := parseBase(base)
	if err != nil {
		return LinkNonNavigable
	}
	class, _, err := classify(href, b)
	if err != nil {
		return LinkNonNavigable
	}
	return class
}

// classify returns the class and, for navigable links, the resolved URL.
func classify(href string, base *url.URL) (LinkClass, *url.URL, error) {
	href = strings.TrimSpace(href)
	if href == "" || hasSchemePrefix(href, "javascript:") {
		return LinkNonNavigable, nil, nil
	}

	ref, err := url.Parse(href)
	if err != nil {
		return LinkNonNavigable, nil, err
	}
	resolved := base.ResolveReference(ref)

	if sameSite(resolved.Hostname(), base.Hostname()) {
		return LinkSameOrigin, resolved, nil
	}
	return LinkCrossOrigin, resolved, nil
}

// sameSite reports whether host equals baseHost or is a subdomain of it.
// Scheme and port are ignored.
func sameSite(host, baseHost string) bool {
	host = strings.ToLower(host)
	baseHost = strings.ToLower(baseHost)
	if host == "" || baseHost == "" {
		return false
	}
	return host == baseHost || strings.HasSuffix(host, "."+baseHost)
}

// parseBase parses an absolute base URL.
func parseBase(base string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, ErrInvalidBase
	}
	return u, nil
}

// hasSchemePrefix is a case-insensitive prefix check for URL schemes.
func hasSchemePrefix(value, scheme string) bool {
	return len(value) >= len(scheme) && strings.EqualFold(value[:len(scheme)], scheme)
}
