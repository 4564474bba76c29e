package api

import (
	"maps"
	"time"

	"linkcheck/internal/resultstore"
	"linkcheck/internal/session"
)

// FromRunSummary converts a stored run to its API representation.
func FromRunSummary(run resultstore.RunSummary) RunSummary {
	dto := RunSummary{
		ID:         run.ID,
		SessionID:  run.SessionID,
		ArticleURL: run.ArticleURL,
		URLCount:   run.URLCount,
		Emitted:    run.Emitted,
		Dropped:    run.Dropped,
		Missing:    run.Missing,
		Batches:    run.Stats.Batches,
		Cancelled:  run.Cancelled,
		StartedAt:  formatTime(run.StartedAt),
		FinishedAt: formatTime(run.FinishedAt),
	}
	if len(run.Stats.Errors) > 0 {
		dto.Errors = maps.Clone(run.Stats.Errors)
	}
	if !run.StartedAt.IsZero() && run.FinishedAt.After(run.StartedAt) {
		dto.DurationSeconds = run.FinishedAt.Sub(run.StartedAt).Seconds()
	}
	return dto
}

// FromRunSummaries converts a slice, never returning nil.
func FromRunSummaries(runs []resultstore.RunSummary) []RunSummary {
	out := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		out = append(out, FromRunSummary(run))
	}
	return out
}

// FromRunInfo converts an in-flight run.
func FromRunInfo(info session.RunInfo) ActiveRun {
	return ActiveRun{
		RunID:     info.RunID,
		SessionID: info.SessionID,
		StartedAt: formatTime(info.StartedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
