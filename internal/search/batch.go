package search

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitesearch/internal/model"
)

// DefaultBatchConcurrency is the number of searches run at the same time.
const DefaultBatchConcurrency = 3

// ServiceFactory returns the Service used for one request, which lets
// callers apply per-site settings such as cookies or headers.
type ServiceFactory func(req model.SearchRequest) *Service

// BatchProcessor runs several searches concurrently.
type BatchProcessor struct {
	factory     ServiceFactory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent searches.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(factory ServiceFactory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
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

// ProcessBatch runs every request and returns the reports in request order.
// A request that fails validation leaves a report with only Request and
// Error set. A failed search never cancels the others; the returned error
// is only non-nil when ctx is done, in which case requests that never
// started have a nil report.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, reqs []model.SearchRequest) ([]*model.SearchReport, error) {
	reports := make([]*model.SearchReport, len(reqs))

	err := bp.ProcessBatchWithCallback(ctx, reqs, func(report *model.SearchReport, index int) {
		reports[index] = report
	})

	return reports, err
}

// ProcessBatchWithCallback runs every request and calls callback as each
// one completes. callback may be called from several goroutines at once.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	reqs []model.SearchRequest,
	callback func(report *model.SearchReport, index int),
) error {
	bp.logger.Info("starting batch search",
		"total", len(reqs),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, req := range reqs {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			report, err := bp.factory(req).Search(ctx, req)
			if report == nil {
				report = model.NewSearchReport(req)
				report.Error = err.Error()
				report.Finish()
			}
			if err != nil {
				bp.logger.Warn("search failed",
					"url", req.StartURL,
					"index", i+1,
					"error", err,
				)
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch search complete",
		"total", len(reqs),
		"elapsed", time.Since(startTime),
	)

	return err
}
