package testsupport

import (
	"testing"

	"linkcheck/internal/config"
	"linkcheck/internal/logging"
	"linkcheck/internal/resultstore"
)

// MustOpenStore opens a resultstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *resultstore.Store {
	t.Helper()

	store, err := resultstore.Open(cfg.StorePath())
	if err != nil {
		t.Fatalf("resultstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewArchive wires an archive over a fresh store and the config's results file.
func NewArchive(t testing.TB, cfg *config.Config) *resultstore.Archive {
	t.Helper()

	return resultstore.NewArchive(MustOpenStore(t, cfg), cfg.Results.ResultsFile, cfg.Results.MaxRuns, logging.NewNop())
}
