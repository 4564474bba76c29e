package api

import "linkcheck/internal/pipeline"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ActiveRun describes a run that is still in flight.
type ActiveRun struct {
	RunID     string `json:"runId"`
	SessionID string `json:"sessionId"`
	StartedAt string `json:"startedAt,omitempty"`
}

// StatusResponse aggregates daemon runtime information for API consumers.
type StatusResponse struct {
	Running      bool        `json:"running"`
	PID          int         `json:"pid"`
	Bind         string      `json:"bind"`
	Sessions     int         `json:"sessions"`
	SessionIDs   []string    `json:"sessionIds"`
	ActiveRuns   []ActiveRun `json:"activeRuns"`
	LockFilePath string      `json:"lockFilePath"`
	StorePath    string      `json:"storePath,omitempty"`
	ResultsFile  string      `json:"resultsFile,omitempty"`
}

// RunSummary is one saved run in transport form.
type RunSummary struct {
	ID              string         `json:"id"`
	SessionID       string         `json:"sessionId,omitempty"`
	ArticleURL      string         `json:"articleUrl"`
	URLCount        int            `json:"urlCount"`
	Emitted         int            `json:"emitted"`
	Dropped         int            `json:"dropped"`
	Missing         int            `json:"missing"`
	Batches         int            `json:"batches"`
	Cancelled       bool           `json:"cancelled"`
	Errors          map[string]int `json:"errors,omitempty"`
	StartedAt       string         `json:"startedAt,omitempty"`
	FinishedAt      string         `json:"finishedAt,omitempty"`
	DurationSeconds float64        `json:"durationSeconds"`
}

// RunsResponse wraps saved run history.
type RunsResponse struct {
	Runs []RunSummary `json:"runs"`
}

// RunDetailResponse carries one run and its records in emission order.
type RunDetailResponse struct {
	Run     RunSummary               `json:"run"`
	Records []pipeline.DisplayRecord `json:"records"`
}

// StaticDataResponse reports how many sessions received a replay broadcast.
type StaticDataResponse struct {
	Delivered int `json:"delivered"`
	Records   int `json:"records"`
}

// MetricsResponse is a flattened snapshot of pipeline instruments keyed by
// instrument name and attributes.
type MetricsResponse struct {
	Metrics map[string]float64 `json:"metrics"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
