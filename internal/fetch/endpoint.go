package fetch

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoint is a relay that fetches an arbitrary URL on our behalf.
// The request URL is Prefix followed by the percent-encoded target.
type Endpoint struct {
	// Prefix is the relay URL up to and including the query separator,
	// e.g. "https://api.allorigins.win/raw?url=".
	Prefix string
}

// DefaultEndpoints are tried in this order when nothing else is configured.
var DefaultEndpoints = []Endpoint{
	{Prefix: "https://corsproxy.io/?"},
	{Prefix: "https://api.allorigins.win/raw?url="},
}

// URL returns the relay request URL for target.
// Spaces are encoded as %20 so relays that decode with component semantics
// recover the target unchanged.
func (e Endpoint) URL(target string) string {
	return e.Prefix + strings.ReplaceAll(url.QueryEscape(target), "+", "%20")
}

// String returns the prefix.
func (e Endpoint) String() string {
	return e.Prefix
}

// ParseEndpoints converts configured prefixes into endpoints, preserving order.
func ParseEndpoints(prefixes []string) ([]Endpoint, error) {
	endpoints := make([]Endpoint, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		u, err := url.Parse(p)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, p)
		}
		endpoints = append(endpoints, Endpoint{Prefix: p})
	}
	return endpoints, nil
}

// Prefixes returns the prefixes of endpoints.
func Prefixes(endpoints []Endpoint) []string {
	out := make([]string, len(endpoints))
	for i, e := range endpoints {
		out[i] = e.Prefix
	}
	return out
}
