// Package resultstore archives finished runs for later replay.
//
// Every run's display records are kept in a SQLite database (runs and
// records tables) so the CLI and HTTP API can list past checks. The most
// recent run is additionally written to a results.json file, which the
// daemon's /fetch-static-data endpoint replays to connected clients. The
// JSON file is written atomically while holding a file lock so the CLI and
// daemon can share it.
package resultstore
