package config

import (
	"strings"
	"time"
)

// SiteConfig holds rewrite overrides for one host. Nil fields inherit the
// global setting.
type SiteConfig struct {
	// RemoveAds overrides ad removal.
	RemoveAds *bool `yaml:"removeAds,omitempty"`

	// InterceptNavigation overrides same-origin link interception.
	InterceptNavigation *bool `yaml:"interceptNavigation,omitempty"`

	// StrictSandbox overrides the sandbox profile.
	StrictSandbox *bool `yaml:"strictSandbox,omitempty"`
}

// File is the structure of the .relayview configuration file.
type File struct {
	// Endpoints replaces the default relay prefixes.
	Endpoints []string `yaml:"endpoints,omitempty"`

	// AllowedCharsets replaces the header charset allow-list.
	AllowedCharsets []string `yaml:"allowedCharsets,omitempty"`

	// Timeout replaces the navigation timeout, e.g. "45s".
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// UserAgent replaces the relay request User-Agent.
	UserAgent string `yaml:"userAgent,omitempty"`

	// RateLimit is the per-endpoint request rate.
	RateLimit float64 `yaml:"rateLimit,omitempty"`

	// Defaults applies to every host.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps host names to overrides. A key also matches its subdomains.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// GetSiteConfig returns the effective overrides for host: Defaults merged
// with the most specific matching site entry.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults

	site, ok := cf.Sites[cf.lookupHost(host)]
	if !ok {
		return result
	}
	if site.RemoveAds != nil {
		result.RemoveAds = site.RemoveAds
	}
	if site.InterceptNavigation != nil {
		result.InterceptNavigation = site.InterceptNavigation
	}
	if site.StrictSandbox != nil {
		result.StrictSandbox = site.StrictSandbox
	}
	return result
}

// lookupHost returns the Sites key matching host, trying the host itself
// and then each parent domain. It returns "" when nothing matches.
func (cf *File) lookupHost(host string) string {
	host = normalizeHost(host)
	for host != "" {
		if _, ok := cf.Sites[host]; ok {
			return host
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}
	return ""
}

// normalizeHost lowercases host and drops a trailing dot.
func normalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(host), ".")
}
