package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is used for XDG directory paths.
	AppName = "relayview"

	// DefaultTimeout bounds one navigation, including every relay trial and
	// every frame pane.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize is the number of URLs rendered at once in batch mode.
	DefaultBatchSize = 4

	// DefaultUserAgent identifies relayview in relay requests.
	DefaultUserAgent = "relayview/1.0 (+https://github.com/nao1215/relayview)"

	// DefaultMaxBodySize limits how much of a relay response is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultListenAddress is where serve listens.
	DefaultListenAddress = "127.0.0.1:8080"

	// DefaultTorStartupTimeout bounds the embedded Tor bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultReportFormat is used when --report is not given.
	DefaultReportFormat = "text"

	// HistoryFileName is the sqlite file inside HistoryDir.
	HistoryFileName = "history.db"
)

// Report formats accepted by --report.
const (
	ReportText     = "text"
	ReportMarkdown = "markdown"
	ReportJSON     = "json"
)

// DefaultEndpoints are the public relay prefixes tried in order.
var DefaultEndpoints = []string{
	"https://corsproxy.io/?",
	"https://api.allorigins.win/raw?url=",
}

// DefaultAllowedCharsets are the charset labels accepted from a
// transport header.
var DefaultAllowedCharsets = []string{
	"utf-8", "shift_jis", "euc-jp", "iso-2022-jp", "windows-1252", "iso-8859-1",
}

// Config holds every option of a relayview run. It is filled from flags
// and the config file and passed down explicitly.
//
// Design decision: one flat struct, like the flag set it mirrors.
type Config struct {
	// Targets are the URLs to render.
	Targets []string

	// Endpoints are the relay prefixes, tried in order.
	Endpoints []string

	// AllowedCharsets is the header charset allow-list.
	AllowedCharsets []string

	// Timeout bounds each navigation.
	Timeout time.Duration

	// MaxBodySize is the largest relay body read, in bytes. 0 means the default.
	MaxBodySize int64

	// UserAgent is sent with relay requests.
	UserAgent string

	// RateLimit is the per-endpoint request rate in requests per second.
	// 0 means unlimited.
	RateLimit float64

	// RateBurst is the per-endpoint burst size.
	RateBurst int

	// RemoveAds, InterceptNavigation and StrictSandbox are the default
	// navigation options; per-host overrides come from SiteConfigs.
	RemoveAds           bool
	InterceptNavigation bool
	StrictSandbox       bool

	// ProxyAddress is an optional upstream SOCKS5 proxy in host:port form.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes relay traffic through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// BatchSize is the batch render concurrency.
	BatchSize int

	// ReportFormat is text, markdown or json.
	ReportFormat string

	// OutputDir receives rendered documents. Empty means stdout for a
	// single target and the current directory for a batch.
	OutputDir string

	// ListenAddress is where serve listens.
	ListenAddress string

	// HistoryDir holds the sqlite history database.
	HistoryDir string

	// SaveHistory records every navigation in the history database.
	SaveHistory bool

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit config file path.
	ConfigFilePath string

	// SiteConfigs is the loaded config file, if any.
	SiteConfigs *File
}

// NewConfig returns a Config with the defaults set.
func NewConfig() *Config {
	return &Config{
		Endpoints:           append([]string(nil), DefaultEndpoints...),
		AllowedCharsets:     append([]string(nil), DefaultAllowedCharsets...),
		Timeout:             DefaultTimeout,
		MaxBodySize:         DefaultMaxBodySize,
		UserAgent:           DefaultUserAgent,
		RateBurst:           1,
		RemoveAds:           true,
		InterceptNavigation: true,
		TorStartupTimeout:   DefaultTorStartupTimeout,
		BatchSize:           DefaultBatchSize,
		ReportFormat:        DefaultReportFormat,
		ListenAddress:       DefaultListenAddress,
		HistoryDir:          XDGDataDir(),
		SaveHistory:         true,
	}
}

// XDGDataDir returns the relayview data directory, e.g. ~/.local/share/relayview.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the relayview config directory, e.g. ~/.config/relayview.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// HistoryPath returns the history database path.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.HistoryDir, HistoryFileName)
}

// Validate checks the options shared by every command and returns the
// first problem found.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if len(c.Endpoints) == 0 {
		return ErrNoEndpoints
	}
	if len(c.AllowedCharsets) == 0 {
		return ErrNoCharsets
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	switch c.ReportFormat {
	case ReportText, ReportMarkdown, ReportJSON:
	default:
		return ErrUnknownReportFormat
	}
	if c.ProxyAddress != "" && c.UseTor {
		return ErrConflictingUpstream
	}
	return nil
}

// ValidateRender runs Validate and also requires at least one target.
func (c *Config) ValidateRender() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	return c.Validate()
}

// ApplyFile merges the settings of a loaded config file. Values set in the
// file replace the defaults; the file is kept for per-host lookups.
// Flags are applied after this, so they win over the file.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.SiteConfigs = f
	if len(f.Endpoints) > 0 {
		c.Endpoints = append([]string(nil), f.Endpoints...)
	}
	if len(f.AllowedCharsets) > 0 {
		c.AllowedCharsets = append([]string(nil), f.AllowedCharsets...)
	}
	if f.Timeout > 0 {
		c.Timeout = f.Timeout
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.RateLimit > 0 {
		c.RateLimit = f.RateLimit
	}
	d := f.Defaults
	if d.RemoveAds != nil {
		c.RemoveAds = *d.RemoveAds
	}
	if d.InterceptNavigation != nil {
		c.InterceptNavigation = *d.InterceptNavigation
	}
	if d.StrictSandbox != nil {
		c.StrictSandbox = *d.StrictSandbox
	}
}

// NavigationOptions are the rewrite and sandbox settings for one host.
type NavigationOptions struct {
	RemoveAds           bool
	InterceptNavigation bool
	StrictSandbox       bool
}

// OptionsFor returns the navigation options for host: the global values
// overridden by the matching site entry of the config file.
func (c *Config) OptionsFor(host string) NavigationOptions {
	opts := NavigationOptions{
		RemoveAds:           c.RemoveAds,
		InterceptNavigation: c.InterceptNavigation,
		StrictSandbox:       c.StrictSandbox,
	}
	if c.SiteConfigs == nil {
		return opts
	}
	site, ok := c.SiteConfigs.Sites[c.SiteConfigs.lookupHost(host)]
	if !ok {
		return opts
	}
	if site.RemoveAds != nil {
		opts.RemoveAds = *site.RemoveAds
	}
	if site.InterceptNavigation != nil {
		opts.InterceptNavigation = *site.InterceptNavigation
	}
	if site.StrictSandbox != nil {
		opts.StrictSandbox = *site.StrictSandbox
	}
	return opts
}
