package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/relayview/internal/model"
)

// createPageNavigation returns a finished page navigation.
func createPageNavigation() *model.Navigation {
	nav := model.NewNavigation("example.jp")
	nav.Target = "https://example.jp"
	nav.Sandbox = "allow-scripts"
	nav.Kind = model.KindPage
	nav.StartedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	nav.Fetch = &model.FetchOutcome{
		Target:      "https://example.jp",
		Charset:     model.CharsetCandidate{Name: "shift_jis", Confidence: 0.97, Source: model.CharsetSourceSniffed},
		Endpoint:    "https://relay-b.test/?",
		StatusCode:  200,
		ContentType: "text/html",
		Size:        2048,
		Hash:        "deadbeef",
		Attempts: []model.Attempt{
			{Endpoint: "https://relay-a.test/?", StatusCode: 502, Error: "HTTP 502", Duration: 120 * time.Millisecond},
			{Endpoint: "https://relay-b.test/?", StatusCode: 200, Duration: 340 * time.Millisecond},
		},
	}
	nav.Rewrite = model.RewriteStats{AdsRemoved: 2, SameOrigin: 5, Intercepted: 5, CrossOrigin: 3, Absolutized: 9}
	nav.PerformedSteps = []string{"fetch", "parse", "render"}
	nav.Complete("<html></html>", "Done")
	nav.FinishedAt = nav.StartedAt.Add(1500 * time.Millisecond)
	return nav
}

// createFramesetNavigation returns a frameset navigation with a failed pane.
func createFramesetNavigation() *model.Navigation {
	nav := createPageNavigation()
	nav.Kind = model.KindFrameset
	nav.Panes = []model.PaneOutcome{
		{Index: 0, URL: "https://example.jp/menu.html", Size: "30%", Charset: "euc-jp"},
		{Index: 1, URL: "https://example.jp/main.html", Size: "*", Failed: true, Error: "all relay endpoints failed"},
	}
	return nav
}

// createFailedNavigation returns a navigation whose retrieval failed.
func createFailedNavigation() *model.Navigation {
	nav := model.NewNavigation("down.test")
	nav.Target = "https://down.test"
	nav.Sandbox = "allow-scripts"
	nav.FailedAttempts = []model.Attempt{
		{Endpoint: "https://relay-a.test/?", Error: "connection refused"},
	}
	nav.Fail(errors.New("failed to retrieve https://down.test: 1 relay endpoint(s) tried"), "<p>error</p>", "Error")
	return nav
}

// TestNew tests the format factory.
func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		want   string
	}{
		{FormatText, "*report.SimpleWriter"},
		{"", "*report.SimpleWriter"},
		{FormatMarkdown, "*report.MarkdownWriter"},
		{FormatJSON, "*report.JSONWriter"},
	}
	for _, tt := range tests {
		w, err := New(tt.format, &bytes.Buffer{}, "1.0.0")
		if err != nil {
			t.Fatalf("New(%q): %v", tt.format, err)
		}
		if got := typeName(w); got != tt.want {
			t.Errorf("New(%q) = %s, want %s", tt.format, got, tt.want)
		}
	}

	if _, err := New("pdf", &bytes.Buffer{}, ""); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

// typeName returns the dynamic type of w.
func typeName(w Writer) string {
	switch w.(type) {
	case *SimpleWriter:
		return "*report.SimpleWriter"
	case *MarkdownWriter:
		return "*report.MarkdownWriter"
	case *JSONWriter:
		return "*report.JSONWriter"
	default:
		return "unknown"
	}
}

// TestSimpleWriter tests the text report.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("page", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(createPageNavigation())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("expected %d bytes reported, got %d", buf.Len(), n)
		}

		out := buf.String()
		for _, want := range []string{
			"RELAYVIEW NAVIGATION REPORT",
			"Target:     https://example.jp",
			"Requested:  example.jp",
			"Duration:   1.5s",
			"Status:     Done",
			"Charset:   shift_jis (content-sniffing, confidence 0.97)",
			"1. https://relay-a.test/?  120ms  FAILED: HTTP 502",
			"2. https://relay-b.test/?  340ms  OK",
			"Ads removed:          2",
			"Cross-origin links:   3 disabled",
			"Steps: fetch -> parse -> render",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("frameset", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createFramesetNavigation()); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		if !strings.Contains(out, "Done (1 of 2 frames missing)") {
			t.Errorf("expected missing frame count:\n%s", out)
		}
		if !strings.Contains(out, "[1] *     https://example.jp/main.html    FAILED: all relay endpoints failed") {
			t.Errorf("expected failed pane line:\n%s", out)
		}
	})

	t.Run("failed", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createFailedNavigation()); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		if !strings.Contains(out, "Status:     FAILED - failed to retrieve") {
			t.Errorf("expected failure status:\n%s", out)
		}
		if !strings.Contains(out, "FAILED: connection refused") {
			t.Errorf("expected failed attempts listed:\n%s", out)
		}
		if strings.Contains(out, "Rewrite") {
			t.Error("failed navigation must not report rewrite counters")
		}
	})

	t.Run("quiet hides detail", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(false)).Write(createFramesetNavigation()); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(buf.String(), "Attempts:") || strings.Contains(buf.String(), "Frames") {
			t.Errorf("expected detail sections hidden:\n%s", buf.String())
		}
	})

	t.Run("batch", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		navs := []*model.Navigation{createPageNavigation(), createFailedNavigation(), nil}
		if _, err := NewSimpleWriter(&buf).WriteBatch(navs); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		if !strings.Contains(out, "1 rendered, 1 failed, 3 total") || !strings.Contains(out, "(not run)") {
			t.Errorf("unexpected batch output:\n%s", out)
		}
	})
}

// TestMarkdownWriter tests the Markdown report.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("page", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createPageNavigation()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		for _, want := range []string{
			"# relayview Navigation Report",
			"`https://example.jp`",
			"## Retrieval",
			"## Rewrite",
			"```mermaid",
			"Link Classification",
			"[!TIP]",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
		if strings.Contains(out, "## Frames") {
			t.Error("page must not have a frames section")
		}
	})

	t.Run("frameset warns about missing frames", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createFramesetNavigation()); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		if !strings.Contains(out, "[!WARNING]") || !strings.Contains(out, "## Frames") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("failure is a caution", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createFailedNavigation()); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		if !strings.Contains(out, "[!CAUTION]") || strings.Contains(out, "## Rewrite") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("batch", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		navs := []*model.Navigation{createPageNavigation(), createFailedNavigation()}
		if _, err := NewMarkdownWriter(&buf).WriteBatch(navs); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		if !strings.Contains(out, "# relayview Batch Report") || !strings.Contains(out, "1 of 2 navigation(s) failed") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})
}

// TestJSONWriter tests the JSON report.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("single navigation", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithVersion("1.2.3")).Write(createPageNavigation()); err != nil {
			t.Fatal(err)
		}
		if !strings.HasSuffix(buf.String(), "\n") {
			t.Error("expected trailing newline")
		}

		var got struct {
			Version    string `json:"version"`
			Navigation struct {
				Target string `json:"target"`
				State  string `json:"state"`
				HTML   string `json:"html"`
				Fetch  struct {
					Charset struct {
						Name   string `json:"name"`
						Source string `json:"source"`
					} `json:"charset"`
				} `json:"fetch"`
			} `json:"navigation"`
		}
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Version != "1.2.3" || got.Navigation.Target != "https://example.jp" || got.Navigation.State != "done" {
			t.Errorf("unexpected report %+v", got)
		}
		if got.Navigation.Fetch.Charset.Source != "content-sniffing" {
			t.Errorf("expected textual charset source, got %q", got.Navigation.Fetch.Charset.Source)
		}
		if got.Navigation.HTML != "" {
			t.Error("document must not be serialized")
		}
	})

	t.Run("indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent("", "\t")).Write(createPageNavigation()); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "\n\t\"navigation\"") {
			t.Errorf("expected tab indentation:\n%s", buf.String())
		}
	})

	t.Run("batch", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		navs := []*model.Navigation{createPageNavigation(), createFailedNavigation()}
		if _, err := NewJSONWriter(&buf).WriteBatch(navs); err != nil {
			t.Fatal(err)
		}
		var got JSONBatchReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Rendered != 1 || got.Failed != 1 || len(got.Navigations) != 2 {
			t.Errorf("unexpected batch %+v", got)
		}
	})
}

// TestMultiWriter tests fan-out.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var text, md bytes.Buffer
	m := NewMultiWriter(NewSimpleWriter(&text), NewMarkdownWriter(&md))

	n, err := m.Write(createPageNavigation())
	if err != nil {
		t.Fatal(err)
	}
	if text.Len() == 0 || md.Len() == 0 || n < text.Len() {
		t.Errorf("expected both outputs written, got %d bytes", n)
	}

	if _, err := m.WriteBatch([]*model.Navigation{createPageNavigation()}); err != nil {
		t.Fatal(err)
	}
}

// TestTruncateString tests cell truncation.
func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}
