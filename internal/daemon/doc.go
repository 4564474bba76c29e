// Package daemon coordinates the long-running linkcheck process.
//
// It wires configuration, the session registry, the pipeline runner, the
// saved-results archive and the metric reader into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon serves the
// live WebSocket endpoint that browsers use to start and stop checks, the
// static front end, the replay trigger, and a small JSON API for status and
// run history.
//
// Keep orchestration logic here: extraction, reconciliation and emission live
// in the pipeline package while the daemon focuses on startup, shutdown, and
// routing events between sessions and runs.
package daemon
