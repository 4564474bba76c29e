// Package config loads, normalizes, and validates linkcheck configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PAAPI_ACCESS_KEY and PORT. The Config type centralizes every knob the daemon
// and CLI need so the data directory, HTTP bind address, collaborator timeouts,
// and catalog credentials are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
