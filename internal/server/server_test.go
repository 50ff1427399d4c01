package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/relayview/internal/config"
	"github.com/nao1215/relayview/internal/database"
	"github.com/nao1215/relayview/internal/fetch"
	"github.com/nao1215/relayview/internal/metrics"
	"github.com/nao1215/relayview/internal/model"
	"github.com/nao1215/relayview/internal/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// discardLogger returns a logger that writes nothing.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mapFetcher serves pages from a map and fails for everything else.
type mapFetcher struct {
	pages map[string]string
}

// Fetch implements pipeline.Fetcher.
func (f *mapFetcher) Fetch(_ context.Context, target string) (*model.FetchOutcome, error) {
	page, ok := f.pages[target]
	if !ok {
		return nil, &fetch.RetrievalError{
			Target:   target,
			Tried:    1,
			Last:     errors.New("HTTP 404"),
			Attempts: []model.Attempt{{Endpoint: "https://relay.test/?", StatusCode: 404, Error: "HTTP 404"}},
		}
	}
	return &model.FetchOutcome{
		Target:   target,
		Text:     page,
		Charset:  model.CharsetCandidate{Name: "utf-8", Confidence: 1, Source: model.CharsetSourceHeader},
		Endpoint: "https://relay.test/?",
		Attempts: []model.Attempt{{Endpoint: "https://relay.test/?", StatusCode: 200}},
	}, nil
}

// recordingNavigator captures the options of each call.
type recordingNavigator struct {
	mu   sync.Mutex
	opts []pipeline.NavigateOptions
}

// Navigate implements Navigator.
func (n *recordingNavigator) Navigate(_ context.Context, raw string, opts pipeline.NavigateOptions) (*model.Navigation, error) {
	n.mu.Lock()
	n.opts = append(n.opts, opts)
	n.mu.Unlock()

	nav := model.NewNavigation(raw)
	nav.Target = raw
	nav.Sandbox = string(pipeline.ProfileFor(opts.StrictSandbox))
	nav.Complete("<p>ok</p>", "Done")
	return nav, nil
}

// last returns the options of the latest call.
func (n *recordingNavigator) last() pipeline.NavigateOptions {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.opts[len(n.opts)-1]
}

// stubHistory returns fixed entries.
type stubHistory struct {
	entries []database.Entry
	err     error
	filter  database.Filter
}

// List implements HistoryLister.
func (h *stubHistory) List(_ context.Context, f database.Filter) ([]database.Entry, error) {
	h.filter = f
	return h.entries, h.err
}

// newTestServer creates a server backed by a real controller.
func newTestServer(t *testing.T, pages map[string]string, opts ...Option) *Server {
	t.Helper()

	cfg := config.NewConfig()
	controller := pipeline.NewController(&mapFetcher{pages: pages},
		pipeline.WithTimeout(5*time.Second),
		pipeline.WithControllerLogger(discardLogger()),
	)
	opts = append([]Option{WithLogger(discardLogger()), WithVersion("v0.0.0-test")}, opts...)
	return New(cfg, controller, opts...)
}

// get performs a GET request against the server.
func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

// decodeRender decodes a render response body.
func decodeRender(t *testing.T, rec *httptest.ResponseRecorder) renderResponse {
	t.Helper()

	var resp renderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

// TestShell tests the viewer page.
func TestShell(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	rec := get(t, s, "/?url=https://example.com/")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`<iframe id="view" sandbox="allow-scripts allow-same-origin allow-forms allow-popups"`,
		"relayview:navigate",
		`value="https://example.com/"`,
		"v0.0.0-test",
		"Processing, please wait...",
		"The page could not be displayed",
		"%RELAYVIEW_ERROR%",
		"showError(err)",
		`showError(data.error || "no document")`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in shell", want)
		}
	}
}

// TestHealth tests the liveness endpoint.
func TestHealth(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestServer(t, nil), "/healthz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

// TestRender tests the render API with a real controller.
func TestRender(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, map[string]string{
		"https://example.com/": `<html><body><a href="/next.html">next</a><a href="https://other.test/">away</a></body></html>`,
	})

	t.Run("renders a page", func(t *testing.T) {
		t.Parallel()

		rec := get(t, s, "/api/render?url=example.com")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		resp := decodeRender(t, rec)
		if resp.State != model.StateDone || resp.Kind != model.KindPage || resp.Status != "Done" {
			t.Errorf("unexpected response %+v", resp)
		}
		if resp.Target != "https://example.com/" || resp.Charset != "utf-8" {
			t.Errorf("unexpected metadata %+v", resp)
		}
		if !strings.Contains(resp.HTML, "relayview:navigate") {
			t.Error("expected intercepted links by default")
		}
		if resp.Rewrite.SameOrigin != 1 || resp.Rewrite.CrossOrigin != 1 {
			t.Errorf("unexpected stats %+v", resp.Rewrite)
		}
	})

	t.Run("retrieval failure still returns a document", func(t *testing.T) {
		t.Parallel()

		rec := get(t, s, "/api/render?url=https://missing.test/")
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
		resp := decodeRender(t, rec)
		if resp.State != model.StateFailed || resp.HTML == "" || !strings.HasPrefix(resp.Status, "Error") {
			t.Errorf("unexpected response %+v", resp)
		}
	})

	t.Run("unusable url", func(t *testing.T) {
		t.Parallel()

		rec := get(t, s, "/api/render?url=ftp://example.com/")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if resp := decodeRender(t, rec); resp.State != model.StateFailed {
			t.Errorf("expected failed state, got %q", resp.State)
		}
	})

	t.Run("missing url", func(t *testing.T) {
		t.Parallel()

		if rec := get(t, s, "/api/render"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("invalid flag", func(t *testing.T) {
		t.Parallel()

		if rec := get(t, s, "/api/render?url=example.com&ads=maybe"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

// TestRenderOptions tests how query parameters and site settings combine.
func TestRenderOptions(t *testing.T) {
	t.Parallel()

	off := false
	strict := true
	cfg := config.NewConfig()
	cfg.SiteConfigs = &config.File{Sites: map[string]config.SiteConfig{
		"legacy.test": {RemoveAds: &off, StrictSandbox: &strict},
	}}

	nav := &recordingNavigator{}
	s := New(cfg, nav, WithLogger(discardLogger()))

	tests := []struct {
		name string
		path string
		want pipeline.NavigateOptions
	}{
		{
			name: "global defaults",
			path: "/api/render?url=example.com",
			want: pipeline.NavigateOptions{RemoveAds: true, InterceptNavigation: true},
		},
		{
			name: "site entry for a subdomain",
			path: "/api/render?url=www.legacy.test/index.html",
			want: pipeline.NavigateOptions{InterceptNavigation: true, StrictSandbox: true},
		},
		{
			name: "query overrides site entry",
			path: "/api/render?url=www.legacy.test/&ads=true&intercept=0&strict=false",
			want: pipeline.NavigateOptions{RemoveAds: true},
		},
	}
	for _, tt := range tests {
		rec := get(t, s, tt.path)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tt.name, rec.Code)
		}
		if got := nav.last(); got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.name, got, tt.want)
		}
	}

	resp := decodeRender(t, get(t, s, "/api/render?url=legacy.test"))
	if resp.Sandbox != string(pipeline.ProfileStrict) {
		t.Errorf("expected strict sandbox, got %q", resp.Sandbox)
	}
}

// TestHistory tests the history endpoint.
func TestHistory(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()

		if rec := get(t, newTestServer(t, nil), "/api/history"); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("lists entries", func(t *testing.T) {
		t.Parallel()

		h := &stubHistory{entries: []database.Entry{{ID: 1, Target: "https://example.com/", State: model.StateDone}}}
		rec := get(t, newTestServer(t, nil, WithHistory(h)), "/api/history?limit=9999&state=done")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"target":"https://example.com/"`) {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
		if h.filter.Limit != maxHistoryLimit || h.filter.State != model.StateDone {
			t.Errorf("unexpected filter %+v", h.filter)
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		t.Parallel()

		rec := get(t, newTestServer(t, nil, WithHistory(&stubHistory{})), "/api/history?limit=abc")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()

		rec := get(t, newTestServer(t, nil, WithHistory(&stubHistory{err: errors.New("locked")})), "/api/history")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

// TestMetricsRoute tests that metrics are exposed only when enabled.
func TestMetricsRoute(t *testing.T) {
	t.Parallel()

	if rec := get(t, newTestServer(t, nil), "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without metrics, got %d", rec.Code)
	}

	s := newTestServer(t, nil, WithMetrics(metrics.New()))
	get(t, s, "/healthz")
	rec := get(t, s, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `relayview_http_requests_total{method="GET",path="/healthz",status="200"} 1`) {
		t.Error("expected instrumented health request in exposition")
	}
}

// TestListenAndServe tests graceful shutdown on cancellation.
func TestListenAndServe(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.ListenAddress = "127.0.0.1:0"
	s := New(cfg, &recordingNavigator{}, WithLogger(discardLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
