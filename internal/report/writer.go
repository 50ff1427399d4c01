package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nao1215/relayview/internal/model"
)

// ErrUnknownFormat is returned by New for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown report format")

// Format names accepted by New.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Writer writes navigation reports.
//
// Design decision: an interface lets the render command send the same
// report to the terminal and to a file through MultiWriter.
type Writer interface {
	// Write outputs the report of one navigation.
	Write(nav *model.Navigation) (int, error)

	// WriteBatch outputs a summary of several navigations.
	WriteBatch(navs []*model.Navigation) (int, error)
}

// New returns the writer for format.
func New(format string, output io.Writer, version string) (Writer, error) {
	switch format {
	case FormatText, "":
		return NewSimpleWriter(output), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint(), WithVersion(version)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// MultiWriter writes to several Writers.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to every writer and stops at the first error.
func (m *MultiWriter) Write(nav *model.Navigation) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(nav)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteBatch outputs the batch summary to every writer.
func (m *MultiWriter) WriteBatch(navs []*model.Navigation) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteBatch(navs)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter holds the output shared by every writer.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// timeLayout formats timestamps in reports.
const timeLayout = "2006-01-02 15:04:05 MST"

// statusText returns a one-line outcome.
func statusText(nav *model.Navigation) string {
	switch {
	case nav.TimedOut:
		return "TIMED OUT"
	case nav.State == model.StateFailed:
		return "FAILED - " + nav.ErrorMessage
	case nav.State == model.StateDone && nav.FailedPanes() > 0:
		return fmt.Sprintf("Done (%d of %d frames missing)", nav.FailedPanes(), len(nav.Panes))
	case nav.State == model.StateDone:
		return "Done"
	default:
		return string(nav.State)
	}
}

// charsetText describes the charset decision.
func charsetText(c model.CharsetCandidate) string {
	if c.Source == model.CharsetSourceSniffed {
		return fmt.Sprintf("%s (%s, confidence %.2f)", c.Name, c.Source, c.Confidence)
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.Source)
}

// attemptResult describes one relay trial.
func attemptResult(a model.Attempt) string {
	if a.Succeeded() {
		return "OK"
	}
	return "FAILED: " + a.Error
}

// roundDuration keeps report durations readable.
func roundDuration(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}

// countByState counts done and failed navigations.
func countByState(navs []*model.Navigation) (done, failed int) {
	for _, nav := range navs {
		if nav == nil {
			continue
		}
		if nav.State == model.StateDone {
			done++
		} else {
			failed++
		}
	}
	return done, failed
}
