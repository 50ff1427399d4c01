package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/relayview/internal/config"
	"github.com/nao1215/relayview/internal/database"
	"github.com/nao1215/relayview/internal/model"
	"github.com/nao1215/relayview/internal/pipeline"
	"github.com/nao1215/relayview/internal/report"
	"github.com/spf13/cobra"
)

// historyTimeLayout formats timestamps in history listings.
const historyTimeLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show recorded navigations and relay statistics",
		Long: `History lists navigations recorded by render and serve, newest first.

Each record keeps the target, document kind, charset decision, serving relay
endpoint, relay attempts, final state and content hash. The rendered
document itself is not stored.

Examples:
  # List the latest navigations
  relayview history

  # Only the failures for one page
  relayview history --state failed example.com

  # Full record of one navigation as Markdown
  relayview history --show 12 --report markdown

  # Which relays actually work
  relayview history --endpoints

  # Forget everything older than 30 days
  relayview history --prune 720h`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	addHistoryFlags(cmd)
	cmd.Flags().StringP("state", "s", "", "Only list navigations in this state (done or failed)")
	cmd.Flags().IntP("limit", "n", 20, "Maximum number of navigations listed")
	cmd.Flags().Int64P("show", "i", 0, "Print the full record of the navigation with this ID")
	cmd.Flags().StringP("report", "r", config.DefaultReportFormat, "Format for --show: text, markdown or json")
	cmd.Flags().Bool("endpoints", false, "Show per-endpoint attempt statistics")
	cmd.Flags().Duration("prune", 0, "Delete navigations older than this duration")
	cmd.Flags().BoolP("json", "j", false, "Output listings in JSON format")

	return cmd
}

// historyOptions are the parsed history flags.
type historyOptions struct {
	target    string
	state     string
	limit     int
	show      int64
	format    string
	endpoints bool
	prune     time.Duration
	json      bool
}

// parseHistoryOptions reads the history flags.
func parseHistoryOptions(cmd *cobra.Command, args []string) (historyOptions, error) {
	var (
		o   historyOptions
		err error
	)
	flags := cmd.Flags()
	if o.state, err = flags.GetString("state"); err != nil {
		return o, err
	}
	if o.limit, err = flags.GetInt("limit"); err != nil {
		return o, err
	}
	if o.show, err = flags.GetInt64("show"); err != nil {
		return o, err
	}
	if o.format, err = flags.GetString("report"); err != nil {
		return o, err
	}
	if o.endpoints, err = flags.GetBool("endpoints"); err != nil {
		return o, err
	}
	if o.prune, err = flags.GetDuration("prune"); err != nil {
		return o, err
	}
	if o.json, err = flags.GetBool("json"); err != nil {
		return o, err
	}

	switch model.NavigationState(o.state) {
	case "", model.StateDone, model.StateFailed:
	default:
		return o, fmt.Errorf("invalid state %q (use done or failed)", o.state)
	}
	if o.prune < 0 {
		return o, errors.New("--prune must be positive")
	}

	// Stored targets are normalized, so the filter must be too.
	if len(args) == 1 {
		if o.target, err = pipeline.NormalizeURL(args[0]); err != nil {
			return o, err
		}
	}
	return o, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	o, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	db, err := openExistingHistory(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return runHistory(cmd.Context(), db, o, cmd.OutOrStdout())
}

// runHistory performs the requested history action.
func runHistory(ctx context.Context, db *database.HistoryDB, o historyOptions, out io.Writer) error {
	switch {
	case o.prune > 0:
		cutoff := time.Now().Add(-o.prune)
		n, err := db.Prune(ctx, cutoff)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d navigation(s) recorded before %s\n", n, cutoff.Format(historyTimeLayout))
		return nil
	case o.show > 0:
		return showNavigation(ctx, db, o, out)
	case o.endpoints:
		return listEndpointStats(ctx, db, o.json, out)
	default:
		return listNavigations(ctx, db, o, out)
	}
}

// showNavigation prints one stored navigation as a report.
func showNavigation(ctx context.Context, db *database.HistoryDB, o historyOptions, out io.Writer) error {
	nav, err := db.Get(ctx, o.show)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("no navigation with ID %d", o.show)
	}
	if err != nil {
		return err
	}
	writer, err := report.New(o.format, out, getVersion())
	if err != nil {
		return err
	}
	_, err = writer.Write(nav)
	return err
}

// listNavigations prints the navigation list.
func listNavigations(ctx context.Context, db *database.HistoryDB, o historyOptions, out io.Writer) error {
	entries, err := db.List(ctx, database.Filter{
		Target: o.target,
		State:  model.NavigationState(o.state),
		Limit:  o.limit,
	})
	if err != nil {
		return err
	}

	if o.json {
		if entries == nil {
			entries = []database.Entry{}
		}
		return writeJSON(out, entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No navigations recorded.")
		fmt.Fprintln(out, "\nUse 'relayview render <url>' or 'relayview serve' to record some.")
		return nil
	}

	fmt.Fprintf(out, "Navigations (%d):\n\n", len(entries))
	fmt.Fprintf(out, "  %-6s  %-19s  %-6s  %-8s  %-12s  %-9s  %s\n", "ID", "Date", "State", "Kind", "Charset", "Duration", "Target")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 96))
	for _, e := range entries {
		state := string(e.State)
		if e.TimedOut {
			state = "timeout"
		}
		kind := string(e.Kind)
		if e.FailedPanes > 0 {
			kind = fmt.Sprintf("%s-%d", kind, e.FailedPanes)
		}
		fmt.Fprintf(out, "  %-6d  %-19s  %-6s  %-8s  %-12s  %-9s  %s\n",
			e.ID,
			e.StartedAt.Local().Format(historyTimeLayout),
			state,
			dash(kind),
			dash(e.Charset),
			e.Duration.Round(time.Millisecond),
			e.Target,
		)
	}
	fmt.Fprintln(out, "\nUse 'relayview history --show <id>' to see a full record.")
	return nil
}

// listEndpointStats prints per-endpoint attempt statistics.
func listEndpointStats(ctx context.Context, db *database.HistoryDB, asJSON bool, out io.Writer) error {
	stats, err := db.EndpointStats(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		type row struct {
			Endpoint        string  `json:"endpoint"`
			Attempts        int     `json:"attempts"`
			Successes       int     `json:"successes"`
			SuccessRate     float64 `json:"success_rate"`
			AverageDuration string  `json:"average_duration"`
		}
		rows := make([]row, 0, len(stats))
		for _, s := range stats {
			rows = append(rows, row{s.Endpoint, s.Attempts, s.Successes, s.SuccessRate(), s.AverageDuration.String()})
		}
		return writeJSON(out, rows)
	}

	if len(stats) == 0 {
		fmt.Fprintln(out, "No relay attempts recorded.")
		return nil
	}

	fmt.Fprintf(out, "Relay endpoints (%d):\n\n", len(stats))
	fmt.Fprintf(out, "  %-8s  %-9s  %-8s  %-10s  %s\n", "Attempts", "Successes", "Rate", "Avg time", "Endpoint")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 80))
	for _, s := range stats {
		fmt.Fprintf(out, "  %-8d  %-9d  %-8s  %-10s  %s\n",
			s.Attempts,
			s.Successes,
			fmt.Sprintf("%.0f%%", s.SuccessRate()*100),
			s.AverageDuration.Round(time.Millisecond),
			s.Endpoint,
		)
	}
	return nil
}

// writeJSON writes v as indented JSON.
func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// dash returns "-" for empty strings.
func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
