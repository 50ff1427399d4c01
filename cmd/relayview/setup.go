package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/relayview/internal/charset"
	"github.com/nao1215/relayview/internal/config"
	"github.com/nao1215/relayview/internal/database"
	"github.com/nao1215/relayview/internal/fetch"
	applog "github.com/nao1215/relayview/internal/log"
	"github.com/nao1215/relayview/internal/pipeline"
	"github.com/nao1215/relayview/internal/transport"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// addRelayFlags registers the flags shared by render and serve.
func addRelayFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	// Relay flags
	flags.StringSliceP("endpoint", "e", nil,
		"Relay endpoint prefix, tried in order (repeatable; default: built-in public relays)")
	flags.DurationP("timeout", "t", config.DefaultTimeout,
		"Deadline for one navigation, including frame panes")
	flags.Float64("rate-limit", 0,
		"Requests per second per relay endpoint (0 = unlimited)")
	flags.String("user-agent", config.DefaultUserAgent,
		"User-Agent sent to relay endpoints")
	flags.Int64("max-body-size", config.DefaultMaxBodySize,
		"Largest relay response read, in bytes")

	// Rewrite flags
	flags.Bool("no-ads", false, "Keep elements that look like ads")
	flags.Bool("no-intercept", false, "Leave same-origin links as plain links")
	flags.Bool("strict", false, "Use the strict sandbox profile (scripts only, opaque origin)")

	// Upstream flags
	flags.String("socks5", "",
		"Reach relays through this SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	flags.Bool("tor", false,
		"Start an embedded Tor daemon and reach relays through it")
	flags.Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	addHistoryFlags(cmd)
	flags.Bool("no-history", false, "Do not record navigations in the history database")
}

// addHistoryFlags registers the history location flag.
func addHistoryFlags(cmd *cobra.Command) {
	cmd.Flags().String("history-dir", "",
		"Directory of the history database (default: XDG data directory)")
}

// loadConfig builds the configuration: defaults, then the config file, then
// every flag set explicitly on the command line.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// An explicit path must exist; the default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if err := applyFlags(flags, cfg); err != nil {
		return nil, err
	}
	cfg.Targets = args
	return cfg, nil
}

// changed reports whether the flag exists on this command and was set.
func changed(flags *pflag.FlagSet, name string) bool {
	f := flags.Lookup(name)
	return f != nil && f.Changed
}

// applyFlags copies explicitly set flags into cfg.
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	var err error

	if changed(flags, "endpoint") {
		if cfg.Endpoints, err = flags.GetStringSlice("endpoint"); err != nil {
			return err
		}
	}
	if changed(flags, "timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if changed(flags, "rate-limit") {
		if cfg.RateLimit, err = flags.GetFloat64("rate-limit"); err != nil {
			return err
		}
	}
	if changed(flags, "user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return err
		}
	}
	if changed(flags, "max-body-size") {
		if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
			return err
		}
	}

	if changed(flags, "no-ads") {
		noAds, err := flags.GetBool("no-ads")
		if err != nil {
			return err
		}
		cfg.RemoveAds = !noAds
	}
	if changed(flags, "no-intercept") {
		noIntercept, err := flags.GetBool("no-intercept")
		if err != nil {
			return err
		}
		cfg.InterceptNavigation = !noIntercept
	}
	if changed(flags, "strict") {
		if cfg.StrictSandbox, err = flags.GetBool("strict"); err != nil {
			return err
		}
	}

	if changed(flags, "socks5") {
		if cfg.ProxyAddress, err = flags.GetString("socks5"); err != nil {
			return err
		}
	}
	if changed(flags, "tor") {
		if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
			return err
		}
	}
	if changed(flags, "tor-timeout") {
		if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
			return err
		}
	}

	if changed(flags, "history-dir") {
		if cfg.HistoryDir, err = flags.GetString("history-dir"); err != nil {
			return err
		}
	}
	if changed(flags, "no-history") {
		noHistory, err := flags.GetBool("no-history")
		if err != nil {
			return err
		}
		cfg.SaveHistory = !noHistory
	}

	if changed(flags, "batch") {
		if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
			return err
		}
	}
	if changed(flags, "report") {
		if cfg.ReportFormat, err = flags.GetString("report"); err != nil {
			return err
		}
	}
	if changed(flags, "output-dir") {
		if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
			return err
		}
	}
	if changed(flags, "listen") {
		if cfg.ListenAddress, err = flags.GetString("listen"); err != nil {
			return err
		}
	}
	return nil
}

// setupLogger creates the secret-scrubbing logger for the verbosity.
func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	return applog.NewSecureLogger(w, verbose)
}

// navigateOptions returns the options for raw, honoring site overrides.
func navigateOptions(cfg *config.Config, raw string) pipeline.NavigateOptions {
	host := ""
	if target, err := pipeline.NormalizeURL(raw); err == nil {
		host = hostOf(target)
	}
	site := cfg.OptionsFor(host)
	return pipeline.NavigateOptions{
		RemoveAds:           site.RemoveAds,
		InterceptNavigation: site.InterceptNavigation,
		StrictSandbox:       site.StrictSandbox,
	}
}

// relayClient builds the transport the relays are reached through, starting
// an embedded Tor daemon when requested. The returned stop function
// releases the daemon and is never nil.
func relayClient(ctx context.Context, cfg *config.Config, logger *slog.Logger, status io.Writer) (*transport.Client, func(), error) {
	stop := func() {}
	opts := []transport.Option{
		transport.WithTimeout(cfg.Timeout),
		transport.WithUserAgent(cfg.UserAgent),
	}

	var (
		client *transport.Client
		err    error
	)
	if cfg.UseTor {
		fmt.Fprintln(status, "Starting embedded Tor daemon...")
		fmt.Fprintf(status, "This may take 1-3 minutes while Tor bootstraps.\n\n")

		tor := transport.NewEmbeddedTor(transport.WithStartupTimeout(cfg.TorStartupTimeout))
		if err := tor.Start(ctx); err != nil {
			return nil, stop, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		logger.Info("embedded Tor daemon started", "socksAddr", tor.SocksAddr())
		stop = func() {
			logger.Info("stopping embedded Tor daemon")
			if err := tor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}
		client, err = tor.NewClient(opts...)
	} else {
		client, err = transport.NewClient(append(opts, transport.WithSOCKS5(cfg.ProxyAddress))...)
	}
	if err != nil {
		stop()
		return nil, func() {}, fmt.Errorf("failed to create relay client: %w", err)
	}

	if client.UsesProxy() {
		if s := client.CheckConnection(ctx); s != transport.ProxyStatusOK {
			stop()
			return nil, func() {}, fmt.Errorf("upstream proxy check failed: %s (make sure a SOCKS5 proxy is running at %s)",
				s, client.ProxyAddress())
		}
		logger.Info("upstream proxy verified", "address", client.ProxyAddress())
	}
	return client, stop, nil
}

// buildFetcher wires the relay client, charset resolver and endpoints into
// a Fetcher. observer may be nil.
func buildFetcher(ctx context.Context, cfg *config.Config, logger *slog.Logger, observer fetch.Observer, status io.Writer) (*fetch.Fetcher, func(), error) {
	endpoints, err := fetch.ParseEndpoints(cfg.Endpoints)
	if err != nil {
		return nil, func() {}, err
	}

	client, stop, err := relayClient(ctx, cfg, logger, status)
	if err != nil {
		return nil, stop, err
	}

	resolver := charset.NewResolver(
		charset.WithAllowedCharsets(cfg.AllowedCharsets),
		charset.WithLogger(logger),
	)
	opts := []fetch.Option{
		fetch.WithEndpoints(endpoints),
		fetch.WithHTTPClient(client.HTTPClient()),
		fetch.WithResolver(resolver),
		fetch.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithLogger(logger),
	}
	if observer != nil {
		opts = append(opts, fetch.WithObserver(observer))
	}
	return fetch.NewFetcher(opts...), stop, nil
}

// openHistory opens the history database, or returns nil when history is
// disabled.
func openHistory(cfg *config.Config) (*database.HistoryDB, error) {
	if !cfg.SaveHistory {
		return nil, nil
	}
	db, err := database.Open(cfg.HistoryDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return db, nil
}

// openExistingHistory opens the history database for reading and reports a
// friendly error when nothing has been recorded yet.
func openExistingHistory(cfg *config.Config) (*database.HistoryDB, error) {
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(cfg.HistoryDir, opts)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("no history recorded yet in %s", cfg.HistoryDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return db, nil
}
