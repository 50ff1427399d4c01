package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/relayview/internal/layout"
	"github.com/nao1215/relayview/internal/model"
	"github.com/nao1215/relayview/internal/rewrite"
)

// Step names recorded in Navigation.PerformedSteps.
const (
	StepFetch  = "fetch"
	StepParse  = "parse"
	StepRender = "render"
)

// Fetcher retrieves and decodes a target URL.
// *fetch.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (*model.FetchOutcome, error)
}

// FetchStep retrieves the target through the relay endpoints.
type FetchStep struct {
	fetcher Fetcher
}

// NewFetchStep creates a FetchStep.
func NewFetchStep(fetcher Fetcher) *FetchStep {
	return &FetchStep{fetcher: fetcher}
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return StepFetch
}

// Do executes the step.
func (s *FetchStep) Do(ctx context.Context, job *Job) error {
	job.SetStatus("Fetching page through relays...")

	outcome, err := s.fetcher.Fetch(ctx, job.Nav.Target)
	if err != nil {
		return err
	}
	job.Nav.Fetch = outcome
	return nil
}

// ParseStep parses the fetched text and decides the document kind.
type ParseStep struct{}

// NewParseStep creates a ParseStep.
func NewParseStep() *ParseStep {
	return &ParseStep{}
}

// Name returns the step name.
func (s *ParseStep) Name() string {
	return StepParse
}

// Do executes the step.
func (s *ParseStep) Do(_ context.Context, job *Job) error {
	if job.Nav.Fetch == nil {
		return ErrNothingFetched
	}
	job.SetStatus(fmt.Sprintf("Parsing document (%s)...", job.Nav.Fetch.Charset.Name))

	doc, err := rewrite.Parse(job.Nav.Fetch.Text)
	if err != nil {
		return err
	}
	job.Doc = doc

	job.Nav.Kind = model.KindPage
	if layout.Detect(doc) {
		job.Nav.Kind = model.KindFrameset
	}
	return nil
}

// RenderStep produces the output document: a rebuilt frameset or a
// rewritten page.
type RenderStep struct {
	rewriter      *rewrite.Rewriter
	reconstructor *layout.Reconstructor
	logger        *slog.Logger
}

// NewRenderStep creates a RenderStep.
func NewRenderStep(rw *rewrite.Rewriter, rc *layout.Reconstructor, logger *slog.Logger) *RenderStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &RenderStep{rewriter: rw, reconstructor: rc, logger: logger}
}

// Name returns the step name.
func (s *RenderStep) Name() string {
	return StepRender
}

// Do executes the step.
func (s *RenderStep) Do(ctx context.Context, job *Job) error {
	if job.Doc == nil {
		return ErrNothingFetched
	}

	if job.Nav.Kind == model.KindFrameset {
		job.SetStatus(fmt.Sprintf("Frameset detected. Fetching %d frames...", layout.CountFrames(job.Doc)))

		result, err := s.reconstructor.Reconstruct(ctx, job.Doc, job.Nav.Target, job.Options)
		if err != nil {
			return err
		}
		job.HTML = result.HTML
		job.Nav.Panes = result.Panes
		job.Nav.Rewrite.Add(result.Stats)

		if failed := job.Nav.FailedPanes(); failed > 0 {
			s.logger.Info("frameset rebuilt with missing panes",
				"target", job.Nav.Target,
				"failed", failed,
				"total", len(result.Panes),
			)
		}
		return nil
	}

	job.SetStatus("Rewriting document...")

	stats, err := s.rewriter.Rewrite(job.Doc, job.Nav.Target, job.Options)
	if err != nil {
		return err
	}
	job.Nav.Rewrite.Add(stats)

	out, err := rewrite.Render(job.Doc)
	if err != nil {
		return err
	}
	job.HTML = out
	return nil
}
