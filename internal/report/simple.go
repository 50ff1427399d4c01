package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/relayview/internal/model"
)

// SimpleWriter outputs plain-text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose adds the per-attempt and per-pane detail.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables the detailed sections.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter. Detail sections are on by default.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		verbose:    true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report of one navigation.
func (w *SimpleWriter) Write(nav *model.Navigation) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, nav)
	w.writeRetrieval(&sb, nav)
	w.writeRewrite(&sb, nav)
	w.writePanes(&sb, nav)

	if len(nav.PerformedSteps) > 0 {
		fmt.Fprintf(&sb, "Steps: %s\n", strings.Join(nav.PerformedSteps, " -> "))
	}
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

// WriteBatch outputs one line per navigation and a total.
func (w *SimpleWriter) WriteBatch(navs []*model.Navigation) (int, error) {
	var sb strings.Builder

	for i, nav := range navs {
		if nav == nil {
			fmt.Fprintf(&sb, "%3d. (not run)\n", i+1)
			continue
		}
		target := nav.Target
		if target == "" {
			target = nav.Requested
		}
		fmt.Fprintf(&sb, "%3d. %-6s %-8s %s", i+1, nav.State, nav.Kind, target)
		if nav.State == model.StateFailed {
			fmt.Fprintf(&sb, "  (%s)", nav.ErrorMessage)
		}
		sb.WriteString("\n")
	}
	done, failed := countByState(navs)
	fmt.Fprintf(&sb, "\n%d rendered, %d failed, %d total\n", done, failed, len(navs))

	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the navigation summary.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, nav *model.Navigation) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n                     RELAYVIEW NAVIGATION REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Target:     %s\n", nav.Target)
	if nav.Requested != nav.Target {
		fmt.Fprintf(sb, "Requested:  %s\n", nav.Requested)
	}
	fmt.Fprintf(sb, "Started:    %s\n", nav.StartedAt.Format(timeLayout))
	fmt.Fprintf(sb, "Duration:   %s\n", roundDuration(nav.Duration()))
	fmt.Fprintf(sb, "Status:     %s\n", statusText(nav))
	if nav.Kind != "" {
		fmt.Fprintf(sb, "Kind:       %s\n", nav.Kind)
	}
	fmt.Fprintf(sb, "Sandbox:    %s\n\n", nav.Sandbox)
}

// writeRetrieval writes the relay and charset section.
func (w *SimpleWriter) writeRetrieval(sb *strings.Builder, nav *model.Navigation) {
	attempts := nav.Attempts()
	if nav.Fetch == nil && len(attempts) == 0 {
		return
	}

	sb.WriteString("Retrieval\n")
	if f := nav.Fetch; f != nil {
		fmt.Fprintf(sb, "  Endpoint:  %s\n", f.Endpoint)
		fmt.Fprintf(sb, "  HTTP:      %d %s\n", f.StatusCode, f.ContentType)
		fmt.Fprintf(sb, "  Size:      %d bytes\n", f.Size)
		fmt.Fprintf(sb, "  SHA-256:   %s\n", f.Hash)
		fmt.Fprintf(sb, "  Charset:   %s\n", charsetText(f.Charset))
	}
	if w.verbose && len(attempts) > 0 {
		sb.WriteString("  Attempts:\n")
		for i, a := range attempts {
			fmt.Fprintf(sb, "    %d. %s  %s  %s\n", i+1, a.Endpoint, roundDuration(a.Duration), attemptResult(a))
		}
	}
	sb.WriteString("\n")
}

// writeRewrite writes the rewrite counters.
func (w *SimpleWriter) writeRewrite(sb *strings.Builder, nav *model.Navigation) {
	if nav.State != model.StateDone {
		return
	}
	s := nav.Rewrite
	sb.WriteString("Rewrite\n")
	fmt.Fprintf(sb, "  Ads removed:          %d\n", s.AdsRemoved)
	fmt.Fprintf(sb, "  Same-origin links:    %d (%d intercepted)\n", s.SameOrigin, s.Intercepted)
	fmt.Fprintf(sb, "  Cross-origin links:   %d disabled\n", s.CrossOrigin)
	fmt.Fprintf(sb, "  Non-navigable links:  %d\n", s.NonNavigable)
	fmt.Fprintf(sb, "  Absolutized refs:     %d\n", s.Absolutized)
	if s.Skipped > 0 {
		fmt.Fprintf(sb, "  Skipped elements:     %d\n", s.Skipped)
	}
	sb.WriteString("\n")
}

// writePanes writes the frameset panes.
func (w *SimpleWriter) writePanes(sb *strings.Builder, nav *model.Navigation) {
	if len(nav.Panes) == 0 || !w.verbose {
		return
	}
	sb.WriteString("Frames\n")
	for _, p := range nav.Panes {
		result := "OK"
		if p.Failed {
			result = "FAILED: " + p.Error
		}
		fmt.Fprintf(sb, "  [%d] %-5s %s  %s  %s\n", p.Index, p.Size, p.URL, p.Charset, result)
	}
	sb.WriteString("\n")
}
