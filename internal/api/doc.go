// Package api defines wire-format types and converters for the daemon's HTTP
// API. It translates session, pipeline and result-store models into
// transport-friendly DTOs the CLI and browser clients render without coupling
// to internal types.
//
// # Key Types
//
// StatusResponse: daemon running state, connected sessions, in-flight runs and
// the paths of the lock, store and results files.
//
// RunSummary/RunsResponse/RunDetailResponse: saved run history.
//
// # Converters
//
// FromRunSummary: resultstore.RunSummary -> RunSummary.
//
// FromRunInfo: session.RunInfo -> ActiveRun.
//
// # Client
//
// Client queries a running daemon over HTTP for the CLI's status and history
// commands.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript consumers. Timestamps use RFC3339
// with milliseconds. Display records are passed through unchanged so the
// browser sees the same shape it receives over the live connection.
package api
