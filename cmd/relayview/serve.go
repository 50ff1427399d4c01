package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/relayview/internal/config"
	"github.com/nao1215/relayview/internal/metrics"
	"github.com/nao1215/relayview/internal/pipeline"
	"github.com/nao1215/relayview/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Browse through relays in a local viewer",
		Long: `Serve starts a local web viewer: a URL bar, a status line and a sandboxed
frame showing the rewritten page. Clicking a same-origin link inside the
frame navigates the viewer to that page through the relays again.

The server also exposes:
  /api/render?url=...   the render API used by the viewer
  /api/history          recent navigations (unless --no-history)
  /metrics              Prometheus metrics
  /healthz              liveness

Examples:
  # Start the viewer on the default address
  relayview serve

  # Listen on another port and reach relays through Tor
  relayview serve --listen 127.0.0.1:9000 --tor`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	addRelayFlags(cmd)
	cmd.Flags().StringP("listen", "L", config.DefaultListenAddress,
		"Address the viewer listens on")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runServe(ctx, cfg, cmd.ErrOrStderr(), logger)
}

// runServe wires the viewer and serves until ctx ends.
func runServe(ctx context.Context, cfg *config.Config, status io.Writer, logger *slog.Logger) error {
	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()

	history, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	fetcher, stopRelay, err := buildFetcher(ctx, cfg, logger, m, status)
	defer stopRelay()
	if err != nil {
		return err
	}

	controllerOpts := []pipeline.ControllerOption{
		pipeline.WithTimeout(cfg.Timeout),
		pipeline.WithControllerLogger(logger),
		pipeline.WithRecorder(m),
	}
	serverOpts := []server.Option{
		server.WithMetrics(m),
		server.WithLogger(logger),
		server.WithVersion(getVersion()),
	}
	if history != nil {
		controllerOpts = append(controllerOpts, pipeline.WithRecorder(history))
		serverOpts = append(serverOpts, server.WithHistory(history))
	}
	controller := pipeline.NewController(fetcher, controllerOpts...)

	fmt.Fprintf(status, "relayview viewer: http://%s/\n", cfg.ListenAddress)
	return server.New(cfg, controller, serverOpts...).ListenAndServe(ctx)
}
