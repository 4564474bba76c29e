package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"linkcheck/internal/services"
)

// Standard field keys shared by every component.
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldSessionID = "session_id"
	FieldTraceID   = "trace_id"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
	FieldAlert     = "alert"
)

// ContextFields extracts run, session, and trace identifiers from ctx as
// attributes. The trace id is only present when a recording tracer is installed.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	if runID, ok := services.RunIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldRunID, runID))
	}
	if sessionID, ok := services.SessionIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldSessionID, sessionID))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		attrs = append(attrs, String(FieldTraceID, sc.TraceID().String()))
	}
	return attrs
}

// WithContext returns logger enriched with identifiers carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	attrs := ContextFields(ctx)
	if len(attrs) == 0 {
		return logger
	}
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return logger.With(args...)
}
