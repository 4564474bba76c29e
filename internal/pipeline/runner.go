package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"linkcheck/internal/article"
	"linkcheck/internal/catalog"
	"linkcheck/internal/logging"
	"linkcheck/internal/services"
)

// Request describes one check.
type Request struct {
	ArticleURL  string
	Credentials catalog.Credentials
}

// Outcome summarizes a finished run.
type Outcome struct {
	RunID      string          `json:"runId"`
	ArticleURL string          `json:"articleUrl"`
	URLCount   int             `json:"urlCount"`
	Records    []DisplayRecord `json:"records"`
	Stats      ReconcileStats  `json:"stats"`
	Cancelled  bool            `json:"cancelled"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
}

// Runner executes checks end to end.
type Runner struct {
	scraper   article.Scraper
	extractor Extractor
	catalog   Catalog
	logger    *slog.Logger
	metrics   *Metrics
	batchSize int
	now       func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logging.NewComponentLogger(logger, "pipeline")
	}
}

// WithMetrics overrides the instruments.
func WithMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithRunnerBatchSize sets the GetItems batch size for every run.
func WithRunnerBatchSize(n int) RunnerOption {
	return func(r *Runner) { r.batchSize = n }
}

// WithClock overrides the time source used for run timestamps.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner wires the collaborators for end-to-end checks.
func NewRunner(scraper article.Scraper, extractor Extractor, client Catalog, opts ...RunnerOption) *Runner {
	r := &Runner{
		scraper:   scraper,
		extractor: extractor,
		catalog:   client,
		logger:    logging.NewNop(),
		batchSize: catalog.MaxItemIDs,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = NewMetrics(nil)
	}
	return r
}

// Process runs one check: scrape, extract, reconcile, emit. Scrape and
// catalog failures are returned as errors tagged for services.FailureStage.
// Cancellation is not an error: the returned outcome has Cancelled set and
// holds the records sent before the stop.
func (r *Runner) Process(ctx context.Context, runID string, req Request, reporter Reporter) (*Outcome, error) {
	ctx = services.WithRunID(ctx, runID)
	ctx, span := tracer.Start(ctx, "Process")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", runID), attribute.String("article.url", req.ArticleURL))

	logger := logging.WithContext(ctx, r.logger)
	started := r.now()
	outcome := &Outcome{RunID: runID, ArticleURL: req.ArticleURL, StartedAt: started}
	finish := func(result string) {
		outcome.FinishedAt = r.now()
		r.metrics.recordRun(ctx, result, outcome.FinishedAt.Sub(started).Seconds())
	}

	if strings.TrimSpace(req.ArticleURL) == "" {
		finish("failed")
		return outcome, services.Wrap(services.ErrValidation, services.StageRequest, "process", "article url required", nil)
	}
	if err := req.Credentials.Validate(); err != nil {
		finish("failed")
		return outcome, err
	}

	logger.Info("run started", logging.String("article", req.ArticleURL))
	scraped, err := r.scraper.Scrape(ctx, req.ArticleURL)
	if err != nil {
		if ctx.Err() != nil {
			return r.cancelled(ctx, logger, outcome, finish)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrape failed")
		finish("failed")
		if !errors.Is(err, services.ErrScrape) && !errors.Is(err, services.ErrValidation) {
			err = services.Wrap(services.ErrScrape, services.StageScrape, "scrape", req.ArticleURL, err)
		}
		return outcome, err
	}
	urls := make([]article.CandidateURL, 0, len(scraped))
	for _, candidate := range scraped {
		if strings.TrimSpace(candidate.URL) != "" {
			urls = append(urls, candidate)
		}
	}
	outcome.URLCount = len(urls)
	if err := reporter.URLsScraped(ctx, len(urls)); err != nil {
		logging.WarnWithContext(logger, "urls scraped notification failed", "session_send_failed", logging.Error(err))
	}

	run := NewRun(runID, r.extractor,
		WithRunLogger(logger),
		WithRunMetrics(r.metrics),
		WithBatchSize(r.batchSize),
	)

	asins, err := run.CollectASINs(ctx, urls)
	if err != nil {
		return r.cancelled(ctx, logger, outcome, finish)
	}
	unique := Dedupe(asins)
	logger.Info("identifiers collected",
		logging.Int("links", len(urls)),
		logging.Int("unique_asins", len(unique)),
	)

	stats, err := run.Reconcile(ctx, r.catalog, req.Credentials, unique)
	outcome.Stats = stats
	if err != nil {
		if ctx.Err() != nil {
			return r.cancelled(ctx, logger, outcome, finish)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog failed")
		finish("failed")
		return outcome, err
	}

	records, err := run.Emit(ctx, urls, reporter)
	outcome.Records = records
	if err != nil {
		if ctx.Err() != nil {
			return r.cancelled(ctx, logger, outcome, finish)
		}
		finish("failed")
		return outcome, err
	}

	finish("completed")
	logger.Info("run complete",
		logging.Int("emitted", len(records)),
		logging.Int("dropped", stats.Dropped),
		logging.Int("missing", stats.Missing),
		logging.Duration("elapsed", outcome.FinishedAt.Sub(started)),
	)
	return outcome, nil
}

func (r *Runner) cancelled(ctx context.Context, logger *slog.Logger, outcome *Outcome, finish func(string)) (*Outcome, error) {
	outcome.Cancelled = true
	finish("cancelled")
	logger.Info("run cancelled",
		logging.Int("emitted", len(outcome.Records)),
		logging.String("reason", context.Cause(ctx).Error()),
	)
	return outcome, nil
}
