// Package services defines shared utilities consumed by the link-check
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run and session identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into the stage label reported to live clients.
//
// Use these helpers when wiring new collaborators so operational behaviour
// (error reporting, observability) stays uniform across the pipeline.
package services
