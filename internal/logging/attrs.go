package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
)

// String creates a string attribute.
func String(key, value string) slog.Attr { return slog.String(key, value) }

// Int creates an int attribute.
func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

// Int64 creates an int64 attribute.
func Int64(key string, value int64) slog.Attr { return slog.Int64(key, value) }

// Bool creates a bool attribute.
func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }

// Duration creates a duration attribute.
func Duration(key string, value time.Duration) slog.Attr { return slog.Duration(key, value) }

// Any wraps arbitrary values.
func Any(key string, value any) slog.Attr { return slog.Any(key, value) }

// Error attaches an error under the conventional "error" key.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Group builds a nested attribute group.
func Group(key string, attrs ...slog.Attr) slog.Attr {
	args := make([]any, 0, len(attrs))
	for _, a := range attrs {
		args = append(args, a)
	}
	return slog.Group(key, args...)
}

// NewNop returns a logger that discards all output.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// NewComponentLogger returns a logger tagged with the component name, falling
// back to a no-op logger when base is nil.
func NewComponentLogger(base *slog.Logger, component string) *slog.Logger {
	if base == nil {
		base = NewNop()
	}
	component = strings.TrimSpace(component)
	if component == "" {
		return base
	}
	return base.With(String(FieldComponent, component))
}

// WarnWithContext logs a warning with the standard event/hint/impact fields.
// Empty values are omitted.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...slog.Attr) {
	logWithEvent(logger, slog.LevelWarn, msg, eventType, attrs...)
}

// ErrorWithContext logs an error-level event with the standard fields.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...slog.Attr) {
	logWithEvent(logger, slog.LevelError, msg, eventType, attrs...)
}

func logWithEvent(logger *slog.Logger, level slog.Level, msg, eventType string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	all := make([]slog.Attr, 0, len(attrs)+1)
	if eventType = strings.TrimSpace(eventType); eventType != "" {
		all = append(all, String(FieldEventType, eventType))
	}
	for _, a := range attrs {
		if a.Equal(slog.Attr{}) {
			continue
		}
		if a.Value.Kind() == slog.KindString && strings.TrimSpace(a.Value.String()) == "" {
			continue
		}
		all = append(all, a)
	}
	logger.LogAttrs(context.Background(), level, msg, all...)
}
