package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/relayview/internal/fetch"
	"github.com/nao1215/relayview/internal/layout"
	"github.com/nao1215/relayview/internal/model"
	"github.com/nao1215/relayview/internal/rewrite"
)

// DefaultTimeout bounds a navigation when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// SandboxProfile is the iframe sandbox attribute value the host applies.
type SandboxProfile string

const (
	// ProfileStrict lets scripts run but keeps the frame on an opaque origin.
	ProfileStrict SandboxProfile = "allow-scripts"

	// ProfilePermissive also grants same-origin access, forms and popups.
	ProfilePermissive SandboxProfile = "allow-scripts allow-same-origin allow-forms allow-popups"
)

// ProfileFor returns the sandbox profile for the strict setting.
func ProfileFor(strict bool) SandboxProfile {
	if strict {
		return ProfileStrict
	}
	return ProfilePermissive
}

// NavigateOptions are the per-navigation settings.
type NavigateOptions struct {
	// RemoveAds enables ad removal.
	RemoveAds bool

	// InterceptNavigation rebinds same-origin links to the navigation message.
	InterceptNavigation bool

	// StrictSandbox selects ProfileStrict instead of ProfilePermissive.
	StrictSandbox bool

	// Status receives progress messages. May be nil.
	Status StatusFunc
}

// rewriteOptions extracts the rewriter options.
func (o NavigateOptions) rewriteOptions() rewrite.Options {
	return rewrite.Options{RemoveAds: o.RemoveAds, InterceptNavigation: o.InterceptNavigation}
}

// Recorder is notified of every finished navigation, e.g. to store history
// or update metrics.
type Recorder interface {
	Record(ctx context.Context, nav *model.Navigation) error
}

// Controller runs navigations.
//
// Navigate is for interactive hosts: starting a navigation cancels the one
// in flight, so only the latest request produces a document. Run executes
// a navigation without touching any other and is used for batches.
type Controller struct {
	// fetcher retrieves documents and panes.
	fetcher Fetcher

	// rewriter processes ordinary pages and panes.
	rewriter *rewrite.Rewriter

	// reconstructor rebuilds framesets.
	reconstructor *layout.Reconstructor

	// timeout bounds each navigation.
	timeout time.Duration

	// recorders are notified when a navigation finishes.
	recorders []Recorder

	// logger for structured logging.
	logger *slog.Logger

	// mu guards cancel and seq.
	mu     sync.Mutex
	cancel context.CancelCauseFunc
	seq    uint64
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithTimeout sets the per-navigation deadline. Non-positive values keep the default.
func WithTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRewriter sets the rewriter.
func WithRewriter(rw *rewrite.Rewriter) ControllerOption {
	return func(c *Controller) {
		c.rewriter = rw
	}
}

// WithReconstructor sets the frameset reconstructor.
func WithReconstructor(rc *layout.Reconstructor) ControllerOption {
	return func(c *Controller) {
		c.reconstructor = rc
	}
}

// WithRecorder adds a recorder. It may be given several times.
func WithRecorder(r Recorder) ControllerOption {
	return func(c *Controller) {
		if r != nil {
			c.recorders = append(c.recorders, r)
		}
	}
}

// WithControllerLogger sets a custom logger.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates a Controller fetching through fetcher.
func NewController(fetcher Fetcher, opts ...ControllerOption) *Controller {
	c := &Controller{
		fetcher: fetcher,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rewriter == nil {
		c.rewriter = rewrite.NewRewriter(rewrite.WithLogger(c.logger))
	}
	if c.reconstructor == nil {
		c.reconstructor = layout.NewReconstructor(fetcher,
			layout.WithRewriter(c.rewriter),
			layout.WithLogger(c.logger),
		)
	}
	return c
}

// Navigate cancels the navigation in flight, if any, and runs a new one.
func (c *Controller) Navigate(ctx context.Context, raw string, opts NavigateOptions) (*model.Navigation, error) {
	ctx, release := c.supersede(ctx)
	defer release()
	return c.Run(ctx, raw, opts)
}

// supersede installs a cancelable context as the current navigation and
// cancels the previous one.
func (c *Controller) supersede(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel(ErrSuperseded)
	}
	c.seq++
	mine := c.seq
	c.cancel = cancel
	c.mu.Unlock()

	return ctx, func() {
		c.mu.Lock()
		if c.seq == mine {
			c.cancel = nil
		}
		c.mu.Unlock()
		cancel(nil)
	}
}

// Run performs one navigation. The returned navigation is always in
// StateDone or StateFailed and always carries a document.
//
// The error is non-nil only when the input is not a usable URL or the
// top-level document could not be retrieved (a *fetch.RetrievalError).
// Any other failure is reported through the navigation alone.
func (c *Controller) Run(ctx context.Context, raw string, opts NavigateOptions) (*model.Navigation, error) {
	nav := model.NewNavigation(raw)
	nav.RemoveAds = opts.RemoveAds
	nav.InterceptNavigation = opts.InterceptNavigation
	nav.Sandbox = string(ProfileFor(opts.StrictSandbox))

	job := NewJob(nav, opts.rewriteOptions(), opts.Status)
	job.SetStatus("Processing...")

	target, err := NormalizeURL(raw)
	if err != nil {
		c.fail(ctx, job, "", err, "Error: "+err.Error())
		return nav, err
	}
	nav.Target = target

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	p := New(WithLogger(c.logger))
	p.AddSteps(
		NewFetchStep(c.fetcher),
		NewParseStep(),
		NewRenderStep(c.rewriter, c.reconstructor, c.logger),
	)

	if err := p.Execute(runCtx, job); err != nil {
		status := "Error: " + err.Error()
		switch {
		case errors.Is(context.Cause(ctx), ErrSuperseded):
			status = "Cancelled: a newer navigation started"
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded):
			nav.TimedOut = true
			status = "Error: timed out after " + c.timeout.String()
		}
		var retrievalErr *fetch.RetrievalError
		isRetrieval := errors.As(err, &retrievalErr)
		if isRetrieval {
			nav.FailedAttempts = retrievalErr.Attempts
		}
		c.fail(ctx, job, target, err, status)

		if isRetrieval {
			return nav, err
		}
		return nav, nil
	}

	nav.Complete(job.HTML, "Done")
	job.SetStatus("Done")
	c.logger.Info("navigation completed",
		"target", target,
		"kind", nav.Kind,
		"charset", nav.Fetch.Charset.Name,
		"endpoint", nav.Fetch.Endpoint,
		"elapsed", nav.Duration(),
	)
	c.record(ctx, nav)
	return nav, nil
}

// fail moves the navigation to StateFailed with an error document.
func (c *Controller) fail(ctx context.Context, job *Job, target string, err error, status string) {
	job.Nav.Fail(err, ErrorDocument(target, err), status)
	job.SetStatus(status)
	c.logger.Warn("navigation failed",
		"requested", job.Nav.Requested,
		"target", target,
		"error", err,
	)
	c.record(ctx, job.Nav)
}

// record notifies every recorder. Recorder failures are logged only.
// The parent context may already be cancelled, so recording is detached
// from it.
func (c *Controller) record(ctx context.Context, nav *model.Navigation) {
	if len(c.recorders) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, r := range c.recorders {
		if err := r.Record(ctx, nav); err != nil {
			c.logger.Warn("failed to record navigation", "target", nav.Target, "error", err)
		}
	}
}
