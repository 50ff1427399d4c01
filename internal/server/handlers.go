package server

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/relayview/internal/database"
	"github.com/nao1215/relayview/internal/fetch"
	"github.com/nao1215/relayview/internal/model"
	"github.com/nao1215/relayview/internal/pipeline"
	"github.com/nao1215/relayview/internal/rewrite"
)

// maxHistoryLimit caps GET /api/history?limit=.
const maxHistoryLimit = 500

// renderResponse is the JSON body of GET /api/render.
type renderResponse struct {
	HTML        string                `json:"html"`
	Status      string                `json:"status"`
	State       model.NavigationState `json:"state"`
	Sandbox     string                `json:"sandbox"`
	Kind        model.DocumentKind    `json:"kind,omitempty"`
	Target      string                `json:"target"`
	Charset     string                `json:"charset,omitempty"`
	Endpoint    string                `json:"endpoint,omitempty"`
	Panes       int                   `json:"panes"`
	FailedPanes int                   `json:"failed_panes"`
	TimedOut    bool                  `json:"timed_out"`
	Error       string                `json:"error,omitempty"`
	Rewrite     model.RewriteStats    `json:"rewrite"`
}

// newRenderResponse builds the response body from a finished navigation.
func newRenderResponse(nav *model.Navigation) renderResponse {
	resp := renderResponse{
		HTML:        nav.HTML,
		Status:      nav.Status,
		State:       nav.State,
		Sandbox:     nav.Sandbox,
		Kind:        nav.Kind,
		Target:      nav.Target,
		Panes:       len(nav.Panes),
		FailedPanes: nav.FailedPanes(),
		TimedOut:    nav.TimedOut,
		Error:       nav.ErrorMessage,
		Rewrite:     nav.Rewrite,
	}
	if nav.Fetch != nil {
		resp.Charset = nav.Fetch.Charset.Name
		resp.Endpoint = nav.Fetch.Endpoint
	}
	return resp
}

// shellErrorMarker is replaced by the shell with the escaped failure message.
const shellErrorMarker = "%RELAYVIEW_ERROR%"

// shellErrorPage is shown by the shell when the render API cannot be
// reached or returns no document.
var shellErrorPage = pipeline.ErrorDocument("", errors.New(shellErrorMarker))

// handleShell serves the viewer page.
func (s *Server) handleShell(c *gin.Context) {
	c.HTML(http.StatusOK, "shell.html", gin.H{
		"Version":     s.version,
		"InitialURL":  c.Query("url"),
		"Loading":     pipeline.LoadingDocument,
		"ErrorPage":   shellErrorPage,
		"ErrorMarker": shellErrorMarker,
		"MessageType": rewrite.NavigateMessageType,
		"Sandbox":     string(pipeline.ProfileFor(s.cfg.StrictSandbox)),
		"RemoveAds":   s.cfg.RemoveAds,
		"Intercept":   s.cfg.InterceptNavigation,
		"Strict":      s.cfg.StrictSandbox,
	})
}

// handleHealth reports liveness.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.version})
}

// handleRender navigates to ?url= and returns the resulting document.
// The ads, intercept and strict parameters override the configured and
// per-site defaults when present.
func (s *Server) handleRender(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("url"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url parameter is required"})
		return
	}

	opts, err := s.navigateOptions(c, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	nav, err := s.navigator.Navigate(c.Request.Context(), raw, opts)
	code := http.StatusOK
	var retrievalErr *fetch.RetrievalError
	switch {
	case errors.As(err, &retrievalErr):
		code = http.StatusBadGateway
	case err != nil:
		code = http.StatusBadRequest
	}
	if nav == nil {
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}
	c.JSON(code, newRenderResponse(nav))
}

// navigateOptions resolves the options for raw: query parameters first,
// then the site entry of the config file, then the global settings.
func (s *Server) navigateOptions(c *gin.Context, raw string) (pipeline.NavigateOptions, error) {
	host := ""
	if target, err := pipeline.NormalizeURL(raw); err == nil {
		if u, err := url.Parse(target); err == nil {
			host = u.Hostname()
		}
	}
	site := s.cfg.OptionsFor(host)
	opts := pipeline.NavigateOptions{
		RemoveAds:           site.RemoveAds,
		InterceptNavigation: site.InterceptNavigation,
		StrictSandbox:       site.StrictSandbox,
	}

	overrides := []struct {
		name string
		dst  *bool
	}{
		{"ads", &opts.RemoveAds},
		{"intercept", &opts.InterceptNavigation},
		{"strict", &opts.StrictSandbox},
	}
	for _, o := range overrides {
		v, ok := c.GetQuery(o.name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New("invalid value for " + o.name + ": " + v)
		}
		*o.dst = b
	}
	return opts, nil
}

// handleHistory lists recent navigations.
func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}

	filter := database.Filter{
		Target: c.Query("target"),
		State:  model.NavigationState(c.Query("state")),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit: " + v})
			return
		}
		filter.Limit = min(n, maxHistoryLimit)
	}

	entries, err := s.history.List(c.Request.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list history"})
		return
	}
	if entries == nil {
		entries = []database.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"navigations": entries, "count": len(entries)})
}
