// Package main hosts the linkcheck CLI entrypoint and command graph.
//
// The Cobra-based command tree runs one-off checks against an article using
// the same pipeline the daemon serves, prints saved results and run history,
// reports daemon status over its HTTP API, and scaffolds configuration. It
// centralizes configuration resolution and logger setup so subcommands can
// focus on output instead of wiring.
package main
