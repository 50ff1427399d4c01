package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/relayview/internal/model"
)

// JSONWriter outputs navigation records as JSON.
//
// Design decision: encoding/json follows the json tags of the model types,
// which are also the history database format.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string.
	indentString string

	// version is stamped into every document when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion stamps the relayview version into the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport wraps one navigation with output metadata.
type JSONReport struct {
	// Version is the relayview version that produced the report.
	Version string `json:"version,omitempty"`

	// Navigation is the full record.
	Navigation *model.Navigation `json:"navigation"`
}

// JSONBatchReport wraps several navigations.
type JSONBatchReport struct {
	Version     string              `json:"version,omitempty"`
	Rendered    int                 `json:"rendered"`
	Failed      int                 `json:"failed"`
	Navigations []*model.Navigation `json:"navigations"`
}

// Write outputs one navigation.
func (w *JSONWriter) Write(nav *model.Navigation) (int, error) {
	return w.writeJSON(JSONReport{Version: w.version, Navigation: nav})
}

// WriteBatch outputs several navigations with totals.
func (w *JSONWriter) WriteBatch(navs []*model.Navigation) (int, error) {
	done, failed := countByState(navs)
	return w.writeJSON(JSONBatchReport{
		Version:     w.version,
		Rendered:    done,
		Failed:      failed,
		Navigations: navs,
	})
}

// writeJSON marshals v and writes it with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
