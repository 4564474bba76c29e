// Package session tracks connected live clients and the pipeline runs they
// own.
//
// Each connection is registered under a generated identifier. Outbound events
// are written through the session's Conn, serialized per session. Runs are
// started with BeginRun or BeginRunFor, which derive a cancellable context.
// Stop cancels every run a session owns or requested; Remove cancels the runs
// a session owns when the client disconnects.
package session
