package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/relayview/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency is the number of navigations a batch runs at once.
const DefaultBatchConcurrency = 4

// BatchProcessor renders several URLs concurrently through one Controller.
//
// Design decision: batch entries use Controller.Run, not Navigate, so they
// never supersede each other.
type BatchProcessor struct {
	// controller runs each navigation.
	controller *Controller

	// concurrency is the maximum number of concurrent navigations.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// optionsFor adjusts the options per URL. May be nil.
	optionsFor OptionsFunc
}

// OptionsFunc returns the options for one batch entry, given the batch-wide
// options.
type OptionsFunc func(raw string, base NavigateOptions) NavigateOptions

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent navigations.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithOptionsFunc sets per-URL options, e.g. per-site settings.
func WithOptionsFunc(fn OptionsFunc) BatchOption {
	return func(b *BatchProcessor) {
		b.optionsFor = fn
	}
}

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(controller *Controller, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		controller:  controller,
		concurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch renders every URL and returns the navigations in input order.
// A failed URL yields a failed navigation and does not stop the others.
// The error is non-nil only when ctx ends before every URL has started;
// entries that never ran are nil.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, urls []string, opts NavigateOptions) ([]*model.Navigation, error) {
	results := make([]*model.Navigation, len(urls))
	err := bp.ProcessBatchWithCallback(ctx, urls, opts, func(nav *model.Navigation, index int) {
		results[index] = nav
	})
	return results, err
}

// ProcessBatchWithCallback renders every URL and calls callback as each
// navigation finishes. callback runs on the worker goroutine and must be
// safe for concurrent use unless it only touches its own index.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	urls []string,
	opts NavigateOptions,
	callback func(nav *model.Navigation, index int),
) error {
	bp.logger.Info("starting batch",
		"total", len(urls),
		"concurrency", bp.concurrency,
	)
	start := time.Now()

	// Status callbacks would interleave between entries.
	opts.Status = nil

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, raw := range urls {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			bp.logger.Debug("rendering batch entry",
				"url", raw,
				"index", i+1,
				"total", len(urls),
			)

			entryOpts := opts
			if bp.optionsFor != nil {
				entryOpts = bp.optionsFor(raw, opts)
				entryOpts.Status = nil
			}

			// The error is carried by the navigation itself.
			nav, _ := bp.controller.Run(gctx, raw, entryOpts) //nolint:errcheck
			callback(nav, i)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	bp.logger.Info("batch complete",
		"total", len(urls),
		"elapsed", time.Since(start),
	)
	return err
}
