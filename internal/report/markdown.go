package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/relayview/internal/model"
)

// MarkdownWriter outputs reports in GitHub Flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report of one navigation.
func (w *MarkdownWriter) Write(nav *model.Navigation) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, nav)
	w.writeOutcomeAlert(md, nav)
	w.writeRetrieval(md, nav)
	w.writeRewrite(md, nav)
	w.writePanes(md, nav)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteBatch outputs a table of navigations.
func (w *MarkdownWriter) WriteBatch(navs []*model.Navigation) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("relayview Batch Report")
	md.PlainText("")

	rows := make([][]string, 0, len(navs))
	for i, nav := range navs {
		if nav == nil {
			rows = append(rows, []string{strconv.Itoa(i + 1), "-", "not run", "-", "-", "-"})
			continue
		}
		charset := "-"
		endpoint := "-"
		if nav.Fetch != nil {
			charset = nav.Fetch.Charset.Name
			endpoint = nav.Fetch.Endpoint
		}
		kind := string(nav.Kind)
		if kind == "" {
			kind = "-"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			"`" + targetOf(nav) + "`",
			statusText(nav),
			kind,
			charset,
			endpoint,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Target", "Status", "Kind", "Charset", "Endpoint"},
		Rows:   rows,
	})
	md.PlainText("")

	done, failed := countByState(navs)
	if failed > 0 {
		md.Warningf("%d of %d navigation(s) failed.", failed, len(navs))
	} else {
		md.Tip(fmt.Sprintf("All %d navigation(s) rendered.", done))
	}
	md.PlainText("")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// targetOf returns the normalized target, or the raw input when
// normalization failed.
func targetOf(nav *model.Navigation) string {
	if nav.Target != "" {
		return nav.Target
	}
	return nav.Requested
}

// writeHeader writes the summary table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, nav *model.Navigation) {
	md.H1("relayview Navigation Report")
	md.PlainText("")

	rows := [][]string{
		{"Target", "`" + targetOf(nav) + "`"},
		{"Started", nav.StartedAt.Format(timeLayout)},
		{"Duration", roundDuration(nav.Duration()).String()},
		{"Status", statusText(nav)},
	}
	if nav.Kind != "" {
		rows = append(rows, []string{"Kind", string(nav.Kind)})
	}
	rows = append(rows, []string{"Sandbox", "`" + nav.Sandbox + "`"})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeOutcomeAlert writes an alert matching the outcome.
func (w *MarkdownWriter) writeOutcomeAlert(md *markdown.Markdown, nav *model.Navigation) {
	switch {
	case nav.TimedOut:
		md.Cautionf("The navigation timed out: %s", nav.ErrorMessage)
	case nav.State == model.StateFailed:
		md.Cautionf("The page could not be displayed: %s", nav.ErrorMessage)
	case nav.FailedPanes() > 0:
		md.Warningf("%d of %d frame(s) could not be loaded and were replaced by a notice.",
			nav.FailedPanes(), len(nav.Panes))
	case nav.Fetch != nil && nav.Fetch.Charset.Source == model.CharsetSourceFallback:
		md.Importantf("No reliable charset was found; the page was decoded as %s.", nav.Fetch.Charset.Name)
	default:
		md.Tip("The page was rendered successfully.")
	}
	md.PlainText("")
}

// writeRetrieval writes the relay attempts and charset decision.
func (w *MarkdownWriter) writeRetrieval(md *markdown.Markdown, nav *model.Navigation) {
	attempts := nav.Attempts()
	if nav.Fetch == nil && len(attempts) == 0 {
		return
	}

	md.H2("Retrieval")
	md.PlainText("")

	if f := nav.Fetch; f != nil {
		md.BulletList(
			"Endpoint: `"+f.Endpoint+"`",
			fmt.Sprintf("HTTP status: %d", f.StatusCode),
			"Content type: "+dashIfEmpty(f.ContentType),
			fmt.Sprintf("Size: %d bytes", f.Size),
			"Charset: "+charsetText(f.Charset),
			"SHA-256: `"+f.Hash+"`",
		)
		md.PlainText("")
	}

	if len(attempts) > 0 {
		rows := make([][]string, len(attempts))
		for i, a := range attempts {
			status := "-"
			if a.StatusCode != 0 {
				status = strconv.Itoa(a.StatusCode)
			}
			rows[i] = []string{
				strconv.Itoa(i + 1),
				"`" + a.Endpoint + "`",
				status,
				roundDuration(a.Duration).String(),
				truncateString(attemptResult(a), 60),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"#", "Endpoint", "HTTP", "Time", "Result"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeRewrite writes the rewrite counters and the link chart.
func (w *MarkdownWriter) writeRewrite(md *markdown.Markdown, nav *model.Navigation) {
	if nav.State != model.StateDone {
		return
	}
	s := nav.Rewrite

	md.H2("Rewrite")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Change", "Count"},
		Rows: [][]string{
			{"Ads removed", strconv.Itoa(s.AdsRemoved)},
			{"Same-origin links", strconv.Itoa(s.SameOrigin)},
			{"Intercepted links", strconv.Itoa(s.Intercepted)},
			{"Cross-origin links disabled", strconv.Itoa(s.CrossOrigin)},
			{"Non-navigable links", strconv.Itoa(s.NonNavigable)},
			{"Absolutized references", strconv.Itoa(s.Absolutized)},
			{"Skipped elements", strconv.Itoa(s.Skipped)},
		},
	})
	md.PlainText("")

	if s.SameOrigin+s.CrossOrigin+s.NonNavigable > 0 {
		w.writeLinkChart(md, s)
	}
}

// writeLinkChart writes a Mermaid pie chart of the link classification.
func (w *MarkdownWriter) writeLinkChart(md *markdown.Markdown, s model.RewriteStats) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Link Classification"),
		piechart.WithShowData(true),
	)
	if s.SameOrigin > 0 {
		chart.LabelAndIntValue("Same origin", uint64(s.SameOrigin))
	}
	if s.CrossOrigin > 0 {
		chart.LabelAndIntValue("Cross origin", uint64(s.CrossOrigin))
	}
	if s.NonNavigable > 0 {
		chart.LabelAndIntValue("Non-navigable", uint64(s.NonNavigable))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writePanes writes the frameset panes.
func (w *MarkdownWriter) writePanes(md *markdown.Markdown, nav *model.Navigation) {
	if len(nav.Panes) == 0 {
		return
	}

	md.H2("Frames")
	md.PlainText("")

	rows := make([][]string, len(nav.Panes))
	for i, p := range nav.Panes {
		result := "OK"
		if p.Failed {
			result = truncateString("FAILED: "+p.Error, 60)
		}
		rows[i] = []string{
			strconv.Itoa(p.Index),
			"`" + p.Size + "`",
			"`" + p.URL + "`",
			dashIfEmpty(p.Charset),
			result,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Size", "URL", "Charset", "Result"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [relayview](https://github.com/nao1215/relayview)*")
}

// dashIfEmpty returns "-" for an empty cell.
func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates s to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
