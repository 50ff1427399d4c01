package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/relayview/internal/config"
	"github.com/nao1215/relayview/internal/database"
	"github.com/nao1215/relayview/internal/model"
	"github.com/nao1215/relayview/internal/pipeline"
	"github.com/nao1215/relayview/internal/report"
	"github.com/spf13/cobra"
)

// maxFileNameLength caps the slug part of generated document names.
const maxFileNameLength = 80

// NewRenderCmd creates the render command.
func NewRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render [url...]",
		Short: "Fetch pages through relays and write the rewritten documents",
		Long: `Render fetches each URL through the relay endpoints, decodes it, rewrites
its links (or rebuilds its frameset) and writes the resulting document.

With a single URL and no --output-dir the document is written to stdout and
the report to stderr. Otherwise documents are written to --output-dir (or
the current directory) and reports to stdout.

Examples:
  # Render one page to stdout
  relayview render example.com > page.html

  # Keep ads and links untouched, strict sandbox
  relayview render --no-ads --no-intercept --strict https://example.com/

  # Render a list of URLs, 8 at a time, with a Markdown report
  relayview render --list urls.txt --batch 8 --output-dir out --report markdown

  # Use a specific relay, reached through a local SOCKS5 proxy
  relayview render -e "https://relay.example/?url=" --socks5 127.0.0.1:9050 example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runRenderCmd,
	}

	addRelayFlags(cmd)

	cmd.Flags().StringP("list", "l", "",
		"Read URLs from a file, one per line ('#' starts a comment)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent navigations")
	cmd.Flags().StringP("output-dir", "o", "",
		"Write documents into this directory")
	cmd.Flags().StringP("report", "r", config.DefaultReportFormat,
		"Report format: text, markdown or json")
	cmd.Flags().String("report-file", "",
		"Write the report to this file instead of the terminal")

	return cmd
}

// runRenderCmd executes the render command.
func runRenderCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	listPath, err := cmd.Flags().GetString("list")
	if err != nil {
		return err
	}
	if listPath != "" {
		listed, err := readTargetList(listPath)
		if err != nil {
			return err
		}
		cfg.Targets = append(cfg.Targets, listed...)
	}

	if err := cfg.ValidateRender(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	reportFile, err := cmd.Flags().GetString("report-file")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runRender(ctx, cfg, renderOutput{
		stdout:     cmd.OutOrStdout(),
		stderr:     cmd.ErrOrStderr(),
		reportFile: reportFile,
	}, logger)
}

// renderOutput holds the destinations of a render run.
type renderOutput struct {
	stdout     io.Writer
	stderr     io.Writer
	reportFile string
}

// runRender renders every target of cfg.
func runRender(ctx context.Context, cfg *config.Config, out renderOutput, logger *slog.Logger) error {
	history, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	fetcher, stopRelay, err := buildFetcher(ctx, cfg, logger, nil, out.stderr)
	defer stopRelay()
	if err != nil {
		return err
	}

	controllerOpts := []pipeline.ControllerOption{
		pipeline.WithTimeout(cfg.Timeout),
		pipeline.WithControllerLogger(logger),
	}
	if history != nil {
		controllerOpts = append(controllerOpts, pipeline.WithRecorder(history))
	}
	controller := pipeline.NewController(fetcher, controllerOpts...)

	// A lone target without an output directory goes to stdout, so the
	// report moves to stderr.
	toStdout := len(cfg.Targets) == 1 && cfg.OutputDir == ""
	reportOut := out.stdout
	if toStdout {
		reportOut = out.stderr
	}
	if out.reportFile != "" {
		f, err := createFile(out.reportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		reportOut = f
	}
	writer, err := report.New(cfg.ReportFormat, reportOut, getVersion())
	if err != nil {
		return err
	}

	if toStdout {
		return renderSingle(ctx, cfg, controller, history, writer, out.stdout, logger)
	}
	return renderBatch(ctx, cfg, controller, writer, out.stderr, logger)
}

// renderSingle renders one target to w.
func renderSingle(ctx context.Context, cfg *config.Config, controller *pipeline.Controller, history *database.HistoryDB,
	writer report.Writer, w io.Writer, logger *slog.Logger) error {
	raw := cfg.Targets[0]

	previous := ""
	if history != nil {
		if target, err := pipeline.NormalizeURL(raw); err == nil {
			if previous, err = history.LastHash(ctx, target); err != nil {
				logger.Warn("failed to read previous hash", "target", target, "error", err)
			}
		}
	}

	opts := navigateOptions(cfg, raw)
	nav, err := controller.Run(ctx, raw, opts)
	if nav != nil {
		if _, werr := io.WriteString(w, nav.HTML); werr != nil {
			return fmt.Errorf("failed to write document: %w", werr)
		}
		if _, werr := writer.Write(nav); werr != nil {
			logger.Error("report failed", "target", nav.Target, "error", werr)
		}
		if note := changeNote(previous, nav); note != "" {
			logger.Info(note, "target", nav.Target)
		}
	}
	if err != nil {
		return err
	}
	if nav.State == model.StateFailed {
		return errors.New(nav.Status)
	}
	return nil
}

// changeNote describes how the fetched content relates to the last
// recorded one. It returns "" when there is nothing to compare.
func changeNote(previous string, nav *model.Navigation) string {
	if previous == "" || nav.Fetch == nil || nav.Fetch.Hash == "" {
		return ""
	}
	if previous == nav.Fetch.Hash {
		return "content unchanged since last render"
	}
	return "content changed since last render"
}

// renderBatch renders every target into cfg.OutputDir.
func renderBatch(ctx context.Context, cfg *config.Config, controller *pipeline.Controller,
	writer report.Writer, progress io.Writer, logger *slog.Logger) error {
	dir := cfg.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	fmt.Fprintf(progress, "Rendering %d URLs (concurrency: %d)...\n", len(cfg.Targets), cfg.BatchSize)
	start := time.Now()

	bp := pipeline.NewBatchProcessor(controller,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
		pipeline.WithOptionsFunc(func(raw string, _ pipeline.NavigateOptions) pipeline.NavigateOptions {
			return navigateOptions(cfg, raw)
		}),
	)

	results := make([]*model.Navigation, len(cfg.Targets))
	var mu sync.Mutex
	err := bp.ProcessBatchWithCallback(ctx, cfg.Targets, pipeline.NavigateOptions{}, func(nav *model.Navigation, index int) {
		path := filepath.Join(dir, documentFileName(nav, index))
		werr := os.WriteFile(path, []byte(nav.HTML), 0o600)

		mu.Lock()
		defer mu.Unlock()
		results[index] = nav
		if werr != nil {
			logger.Error("failed to write document", "path", path, "error", werr)
		}
		fmt.Fprintf(progress, "[%d/%d] %s: %s -> %s\n", index+1, len(cfg.Targets), nav.Requested, nav.Status, path)
	})

	finished := make([]*model.Navigation, 0, len(results))
	failed := 0
	for _, nav := range results {
		if nav == nil {
			continue
		}
		finished = append(finished, nav)
		if nav.State == model.StateFailed {
			failed++
		}
	}
	if _, werr := writer.WriteBatch(finished); werr != nil {
		logger.Error("report failed", "error", werr)
	}
	fmt.Fprintf(progress, "\nBatch completed in %s\n", time.Since(start).Round(time.Millisecond))

	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d navigations failed", failed, len(cfg.Targets))
	}
	return nil
}

// documentFileName derives a file name from the navigation target.
func documentFileName(nav *model.Navigation, index int) string {
	name := nav.Target
	if name == "" {
		name = nav.Requested
	}
	name = strings.TrimPrefix(strings.TrimPrefix(name, "https://"), "http://")

	var b strings.Builder
	dash := false
	for _, r := range name {
		ok := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '_'
		if ok {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.Trim(b.String(), "-.")
	if len(slug) > maxFileNameLength {
		slug = slug[:maxFileNameLength]
	}
	if slug == "" {
		slug = "document"
	}
	return fmt.Sprintf("%03d-%s.html", index+1, slug)
}

// hostOf returns the host name of an absolute URL, or "".
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// readTargetList reads URLs from path, skipping blanks and comments.
func readTargetList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open URL list: %w", err)
	}
	defer f.Close()

	var targets []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return targets, nil
}

// createFile creates path and its parent directories. Reports and documents
// are readable by the owner only.
func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return f, nil
}
