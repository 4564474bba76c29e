package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"linkcheck/internal/article"
	"linkcheck/internal/catalog"
	"linkcheck/internal/extract"
	"linkcheck/internal/logging"
	"linkcheck/internal/services"
)

var errorASINPattern = regexp.MustCompile(`[a-zA-Z0-9]{10}`)

// Run holds the lookup tables for one check. A Run is not safe for
// concurrent use; each check gets its own.
type Run struct {
	ID string

	extractor Extractor
	logger    *slog.Logger
	metrics   *Metrics
	batchSize int

	urls    map[string]*URLEntry
	asins   map[string]*ASINEntry
	results []DisplayRecord
}

// RunOption configures a Run.
type RunOption func(*Run)

// WithRunLogger attaches a logger.
func WithRunLogger(logger *slog.Logger) RunOption {
	return func(r *Run) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRunMetrics attaches instruments.
func WithRunMetrics(m *Metrics) RunOption {
	return func(r *Run) { r.metrics = m }
}

// WithBatchSize sets the number of ASINs per GetItems call, capped at the
// API limit.
func WithBatchSize(n int) RunOption {
	return func(r *Run) {
		if n > 0 && n <= catalog.MaxItemIDs {
			r.batchSize = n
		}
	}
}

// NewRun creates an empty run.
func NewRun(id string, extractor Extractor, opts ...RunOption) *Run {
	r := &Run{
		ID:        id,
		extractor: extractor,
		logger:    logging.NewNop(),
		batchSize: catalog.MaxItemIDs,
		urls:      make(map[string]*URLEntry),
		asins:     make(map[string]*ASINEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// URLEntry returns the extraction outcome for rawURL.
func (r *Run) URLEntry(rawURL string) (URLEntry, bool) {
	e, ok := r.urls[rawURL]
	if !ok {
		return URLEntry{}, false
	}
	return *e, true
}

// ASINEntry returns the catalog outcome for asin.
func (r *Run) ASINEntry(asin string) (ASINEntry, bool) {
	e, ok := r.asins[asin]
	if !ok {
		return ASINEntry{}, false
	}
	return *e, true
}

// Results returns the records emitted so far.
func (r *Run) Results() []DisplayRecord {
	return append([]DisplayRecord(nil), r.results...)
}

// CollectASINs extracts identifiers for every URL in order, creating one
// URLEntry per distinct raw URL, and returns the extracted ASIN for each
// input position (empty when none was found). Each distinct URL is extracted
// once. The only error is cancellation, checked before each URL.
func (r *Run) CollectASINs(ctx context.Context, urls []article.CandidateURL) ([]string, error) {
	ctx, span := tracer.Start(ctx, "CollectASINs")
	defer span.End()

	asins := make([]string, 0, len(urls))
	for _, candidate := range urls {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "cancelled")
			return asins, err
		}
		entry, ok := r.urls[candidate.URL]
		if !ok {
			res := r.extractor.Extract(ctx, candidate.URL)
			tag := res.Tag
			if tag == "" {
				tag = extract.NoTag
			}
			entry = &URLEntry{
				ASIN:     res.ASIN,
				Tag:      tag,
				ItemName: ItemNameUnprocessed,
			}
			r.urls[candidate.URL] = entry
			if res.ASIN == "" {
				r.logger.Info("link has no product identifier", logging.String("url", candidate.URL))
			}
		}
		asins = append(asins, entry.ASIN)
	}
	r.metrics.addLinks(ctx, len(urls))
	span.SetAttributes(attribute.Int("links", len(urls)), attribute.Int("distinct_urls", len(r.urls)))
	return asins, nil
}

// Dedupe returns the distinct non-empty ASINs in first-seen order.
func Dedupe(asins []string) []string {
	seen := make(map[string]struct{}, len(asins))
	out := make([]string, 0, len(asins))
	for _, asin := range asins {
		if asin == "" {
			continue
		}
		if _, ok := seen[asin]; ok {
			continue
		}
		seen[asin] = struct{}{}
		out = append(out, asin)
	}
	return out
}

// Reconcile looks up unique in batches and records one ASINEntry per
// attributable item or error. An empty set makes no call. A failed call
// aborts reconciliation with an error tagged services.ErrCatalog.
func (r *Run) Reconcile(ctx context.Context, client Catalog, creds catalog.Credentials, unique []string) (ReconcileStats, error) {
	ctx, span := tracer.Start(ctx, "Reconcile")
	defer span.End()

	stats := ReconcileStats{Requested: len(unique)}
	if len(unique) == 0 {
		return stats, nil
	}

	batches := chunk(unique, r.batchSize)
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Batches++
		r.metrics.addBatch(ctx)
		resp, err := client.GetItems(ctx, creds, catalog.NewGetItemsRequest(batch))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "getitems failed")
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			return stats, services.Wrap(services.ErrCatalog, services.StageCatalog, "reconcile",
				fmt.Sprintf("batch %d of %d", i+1, len(batches)), err)
		}
		r.apply(resp, &stats)
	}

	for _, asin := range unique {
		if _, ok := r.asins[asin]; ok {
			continue
		}
		stats.Missing++
		logging.WarnWithContext(r.logger, "catalog response omitted asin", "catalog_asin_missing",
			logging.String("asin", asin),
			logging.String(logging.FieldImpact, "link reported as unresolved"),
		)
	}
	r.metrics.addDropped(ctx, stats.Dropped)
	r.metrics.addMissing(ctx, stats.Missing)

	span.SetAttributes(
		attribute.Int("requested", stats.Requested),
		attribute.Int("resolved", stats.Resolved),
		attribute.Int("invalid", stats.Invalid),
		attribute.Int("dropped", stats.Dropped),
		attribute.Int("missing", stats.Missing),
	)
	return stats, nil
}

func (r *Run) apply(resp *catalog.GetItemsResponse, stats *ReconcileStats) {
	if resp == nil {
		return
	}
	for _, item := range resp.Items() {
		if item.ASIN == "" {
			continue
		}
		r.asins[item.ASIN] = &ASINEntry{Valid: true, ItemName: item.Title()}
		stats.Resolved++
	}
	for _, e := range resp.Errors {
		asin := errorASINPattern.FindString(e.Message)
		if asin == "" {
			stats.Dropped++
			logging.WarnWithContext(r.logger, "catalog error names no asin", "catalog_error_unattributed",
				logging.String("code", e.Code),
				logging.String("message", e.Message),
			)
			continue
		}
		if existing, ok := r.asins[asin]; ok && existing.Valid {
			continue
		}
		r.asins[asin] = &ASINEntry{Valid: false, ItemName: ItemNameNotFound, ErrorCode: e.Code}
		stats.Invalid++
		if stats.Errors == nil {
			stats.Errors = make(map[string]int)
		}
		stats.Errors[catalog.ErrorLabel(e.Code)]++
		r.logger.Info("catalog rejected item",
			logging.String("asin", asin),
			logging.String("code", e.Code),
			logging.String("label", catalog.ErrorLabel(e.Code)),
		)
	}
}

// Emit walks urls in order, joins each with its URLEntry and ASINEntry, and
// sends the resulting record to sink. Cancellation is checked before every
// record; nothing is sent once ctx is done. A sink error stops emission.
func (r *Run) Emit(ctx context.Context, urls []article.CandidateURL, sink Sink) ([]DisplayRecord, error) {
	ctx, span := tracer.Start(ctx, "Emit")
	defer span.End()

	emitted := make([]DisplayRecord, 0, len(urls))
	for _, candidate := range urls {
		if err := ctx.Err(); err != nil {
			return emitted, err
		}
		record := r.record(candidate)
		if err := sink.Send(ctx, record); err != nil {
			span.RecordError(err)
			return emitted, fmt.Errorf("send record: %w", err)
		}
		r.metrics.addEmitted(ctx)
		emitted = append(emitted, record)
		r.results = append(r.results, record)
	}
	span.SetAttributes(attribute.Int("emitted", len(emitted)))
	return emitted, nil
}

func (r *Run) record(candidate article.CandidateURL) DisplayRecord {
	record := DisplayRecord{
		URLText: candidate.Text,
		URL:     candidate.URL,
		Tag:     extract.NoTag,
	}
	entry, ok := r.urls[candidate.URL]
	if !ok || entry.ASIN == "" {
		if ok {
			record.Tag = entry.Tag
		}
		record.ItemName = ItemNameNoIdentifier
		return record
	}
	record.Tag = entry.Tag
	record.ASIN = entry.ASIN
	outcome, ok := r.asins[entry.ASIN]
	if !ok {
		record.ItemName = ItemNameNoCatalogResult
		return record
	}
	record.ItemName = outcome.ItemName
	record.ValidOnAmazon = outcome.Valid
	return record
}

func chunk(values []string, size int) [][]string {
	if size <= 0 {
		size = len(values)
	}
	var out [][]string
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		out = append(out, values[start:end])
	}
	return out
}
