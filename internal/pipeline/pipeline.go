package pipeline

import (
	"context"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/relayview/internal/model"
	"github.com/nao1215/relayview/internal/rewrite"
)

// StatusFunc receives human-readable progress messages.
type StatusFunc func(status string)

// Job carries one navigation through the steps.
type Job struct {
	// Nav is the record being filled in.
	Nav *model.Navigation

	// Options are the rewrite options of this navigation.
	Options rewrite.Options

	// Doc is the parsed top-level document, set by the parse step.
	Doc *goquery.Document

	// HTML is the output document, set by the render step.
	HTML string

	// status is notified on every SetStatus call. May be nil.
	status StatusFunc
}

// NewJob creates a job for nav.
func NewJob(nav *model.Navigation, opts rewrite.Options, status StatusFunc) *Job {
	return &Job{Nav: nav, Options: opts, status: status}
}

// SetStatus records and reports a progress message.
func (j *Job) SetStatus(status string) {
	j.Nav.Status = status
	if j.status != nil {
		j.status(status)
	}
}

// Step is one stage of a navigation.
//
// Design decision: Steps are an interface so they can hold their
// collaborators (fetcher, rewriter) and report a name for logging.
type Step interface {
	// Do executes the step. A returned error ends the navigation.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends several steps in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order and stops at the first error.
// Cancellation is checked before each step; steps handle it while running.
// Every step that ran is appended to job.Nav.PerformedSteps.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("navigation cancelled",
				"step", step.Name(),
				"target", job.Nav.Target,
				"reason", err,
			)
			return err
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"target", job.Nav.Target,
		)

		err := step.Do(ctx, job)
		job.Nav.PerformedSteps = append(job.Nav.PerformedSteps, step.Name())
		if err != nil {
			p.logger.Debug("step failed",
				"step", step.Name(),
				"target", job.Nav.Target,
				"error", err,
			)
			return err
		}
	}
	return nil
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
