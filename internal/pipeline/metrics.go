package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "linkcheck/internal/pipeline"

var tracer = otel.Tracer(instrumentationName)

// Metrics holds the pipeline's instruments.
type Metrics struct {
	runs           metric.Int64Counter
	links          metric.Int64Counter
	catalogBatches metric.Int64Counter
	droppedErrors  metric.Int64Counter
	missingASINs   metric.Int64Counter
	recordsEmitted metric.Int64Counter
	runDuration    metric.Float64Histogram
}

// NewMetrics registers instruments on meter, falling back to the global
// meter provider when meter is nil. Registration errors leave the affected
// instrument as a no-op.
func NewMetrics(meter metric.Meter) *Metrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m := &Metrics{}
	m.runs, _ = meter.Int64Counter("linkcheck.pipeline.runs",
		metric.WithDescription("Completed pipeline runs by outcome."))
	m.links, _ = meter.Int64Counter("linkcheck.pipeline.links",
		metric.WithDescription("Links extracted from scraped articles."))
	m.catalogBatches, _ = meter.Int64Counter("linkcheck.pipeline.catalog_batches",
		metric.WithDescription("GetItems requests issued."))
	m.droppedErrors, _ = meter.Int64Counter("linkcheck.pipeline.dropped_attributions",
		metric.WithDescription("Catalog errors whose message named no ASIN."))
	m.missingASINs, _ = meter.Int64Counter("linkcheck.pipeline.missing_asins",
		metric.WithDescription("Queried ASINs absent from both items and errors."))
	m.recordsEmitted, _ = meter.Int64Counter("linkcheck.pipeline.records_emitted",
		metric.WithDescription("Display records sent to sessions."))
	m.runDuration, _ = meter.Float64Histogram("linkcheck.pipeline.run_duration",
		metric.WithDescription("Wall time of pipeline runs."),
		metric.WithUnit("s"))
	return m
}

func (m *Metrics) addLinks(ctx context.Context, n int) {
	if m != nil && m.links != nil {
		m.links.Add(ctx, int64(n))
	}
}

func (m *Metrics) addBatch(ctx context.Context) {
	if m != nil && m.catalogBatches != nil {
		m.catalogBatches.Add(ctx, 1)
	}
}

func (m *Metrics) addDropped(ctx context.Context, n int) {
	if m != nil && m.droppedErrors != nil && n > 0 {
		m.droppedErrors.Add(ctx, int64(n))
	}
}

func (m *Metrics) addMissing(ctx context.Context, n int) {
	if m != nil && m.missingASINs != nil && n > 0 {
		m.missingASINs.Add(ctx, int64(n))
	}
}

func (m *Metrics) addEmitted(ctx context.Context) {
	if m != nil && m.recordsEmitted != nil {
		m.recordsEmitted.Add(ctx, 1)
	}
}

func (m *Metrics) recordRun(ctx context.Context, outcome string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if m.runs != nil {
		m.runs.Add(ctx, 1, attrs)
	}
	if m.runDuration != nil {
		m.runDuration.Record(ctx, seconds, attrs)
	}
}
