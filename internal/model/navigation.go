package model

import "time"

// DocumentKind tells which transformation produced a navigation's document.
type DocumentKind string

const (
	// KindPage is an ordinary document processed by the rewriter.
	KindPage DocumentKind = "page"

	// KindFrameset is a legacy frame layout rebuilt as nested containers.
	KindFrameset DocumentKind = "frameset"
)

// NavigationState is the lifecycle state of a navigation.
// Every navigation ends in StateDone or StateFailed; the host surface must
// never be left in StateLoading.
type NavigationState string

const (
	// StateLoading means the pipeline is still running.
	StateLoading NavigationState = "loading"

	// StateDone means the document was produced successfully.
	StateDone NavigationState = "done"

	// StateFailed means the top-level retrieval failed and HTML holds an
	// error document.
	StateFailed NavigationState = "failed"
)

// RewriteStats counts what the rewriter changed in one document.
type RewriteStats struct {
	// AdsRemoved is the number of elements removed by the ad classifier.
	AdsRemoved int `json:"ads_removed"`

	// SameOrigin is the number of same-origin links seen.
	SameOrigin int `json:"same_origin"`

	// CrossOrigin is the number of cross-origin links disabled.
	CrossOrigin int `json:"cross_origin"`

	// NonNavigable is the number of script or empty links left alone.
	NonNavigable int `json:"non_navigable"`

	// Intercepted is the number of same-origin links rebound to the
	// navigation message.
	Intercepted int `json:"intercepted"`

	// Absolutized is the number of relative references made absolute.
	Absolutized int `json:"absolutized"`

	// Skipped is the number of elements whose rewrite failed and was skipped.
	Skipped int `json:"skipped"`
}

// Add accumulates other into s.
func (s *RewriteStats) Add(other RewriteStats) {
	s.AdsRemoved += other.AdsRemoved
	s.SameOrigin += other.SameOrigin
	s.CrossOrigin += other.CrossOrigin
	s.NonNavigable += other.NonNavigable
	s.Intercepted += other.Intercepted
	s.Absolutized += other.Absolutized
	s.Skipped += other.Skipped
}

// PaneOutcome is the result of retrieving and rewriting one frame pane.
type PaneOutcome struct {
	// Index is the pane position within the frameset.
	Index int `json:"index"`

	// URL is the absolute pane source.
	URL string `json:"url"`

	// Size is the layout token applied to this pane (e.g. "30%", "*", "200").
	Size string `json:"size"`

	// Charset is the encoding the pane was decoded with.
	Charset string `json:"charset,omitempty"`

	// Failed is true when the pane was replaced by a placeholder notice.
	Failed bool `json:"failed"`

	// Error is the failure message when Failed is true.
	Error string `json:"error,omitempty"`
}

// Navigation is the full record of one "navigate to URL" request.
// It is created by the pipeline controller, filled in by each step, and
// handed back to the host surface.
type Navigation struct {
	// Target is the normalized absolute URL being displayed.
	Target string `json:"target"`

	// Requested is the raw user input before normalization.
	Requested string `json:"requested"`

	// RemoveAds and InterceptNavigation are the rewrite options used.
	RemoveAds           bool `json:"remove_ads"`
	InterceptNavigation bool `json:"intercept_navigation"`

	// Sandbox is the iframe sandbox attribute value the host must apply.
	Sandbox string `json:"sandbox"`

	// Kind is set once the document type is known.
	Kind DocumentKind `json:"kind,omitempty"`

	// State is the lifecycle state.
	State NavigationState `json:"state"`

	// Status is the latest human-readable status line.
	Status string `json:"status"`

	// HTML is the serialized output document (or the error document).
	HTML string `json:"-"`

	// Fetch is the top-level retrieval outcome.
	Fetch *FetchOutcome `json:"fetch,omitempty"`

	// FailedAttempts lists the relay trials of a retrieval that failed
	// entirely. Successful retrievals keep theirs in Fetch.
	FailedAttempts []Attempt `json:"failed_attempts,omitempty"`

	// Panes holds per-pane outcomes for framesets.
	Panes []PaneOutcome `json:"panes,omitempty"`

	// Rewrite aggregates rewrite statistics over the document and its panes.
	Rewrite RewriteStats `json:"rewrite"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// StartedAt and FinishedAt bound the navigation.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// TimedOut is true when the navigation deadline expired.
	TimedOut bool `json:"timed_out"`

	// Error holds the failure; ErrorMessage is its serializable form.
	Error        error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`
}

// NewNavigation creates a navigation in the loading state.
func NewNavigation(requested string) *Navigation {
	return &Navigation{
		Requested: requested,
		State:     StateLoading,
		StartedAt: time.Now(),
	}
}

// Complete moves the navigation to StateDone with the given document.
func (n *Navigation) Complete(html, status string) {
	n.HTML = html
	n.Status = status
	n.State = StateDone
	n.FinishedAt = time.Now()
}

// Fail moves the navigation to StateFailed with an error document.
func (n *Navigation) Fail(err error, html, status string) {
	n.Error = err
	if err != nil {
		n.ErrorMessage = err.Error()
	}
	n.HTML = html
	n.Status = status
	n.State = StateFailed
	n.FinishedAt = time.Now()
}

// Duration returns how long the navigation took, or the time elapsed so far
// when it is still loading.
func (n *Navigation) Duration() time.Duration {
	if n.FinishedAt.IsZero() {
		return time.Since(n.StartedAt)
	}
	return n.FinishedAt.Sub(n.StartedAt)
}

// Attempts returns the relay trials of the top-level retrieval, whether it
// succeeded or not.
func (n *Navigation) Attempts() []Attempt {
	if n.Fetch != nil {
		return n.Fetch.Attempts
	}
	return n.FailedAttempts
}

// FailedPanes returns the number of panes replaced by placeholders.
func (n *Navigation) FailedPanes() int {
	count := 0
	for _, p := range n.Panes {
		if p.Failed {
			count++
		}
	}
	return count
}
