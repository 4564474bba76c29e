package resultstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"linkcheck/internal/pipeline"
)

// ErrNoResults is returned when the results file has not been written yet.
var ErrNoResults = errors.New("no saved results")

func lockFor(path string) *flock.Flock {
	return flock.New(path + ".lock")
}

// WriteResultsFile replaces the results file with records. The write goes
// through a temp file and rename while holding the file lock.
func WriteResultsFile(path string, records []pipeline.DisplayRecord) error {
	if records == nil {
		records = []pipeline.DisplayRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create results directory: %w", err)
	}

	lock := lockFor(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock results file: %w", err)
	}
	defer lock.Unlock()

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// ReadResultsRaw returns the results file's JSON document as stored, after
// checking that it parses.
func ReadResultsRaw(path string) (json.RawMessage, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoResults, path)
	}
	lock := lockFor(path)
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock results file: %w", err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoResults, path)
		}
		return nil, fmt.Errorf("read results file: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("parse results file %s: invalid json", path)
	}
	return json.RawMessage(data), nil
}

// ReadResultsFile decodes the results file into display records.
func ReadResultsFile(path string) ([]pipeline.DisplayRecord, error) {
	raw, err := ReadResultsRaw(path)
	if err != nil {
		return nil, err
	}
	var records []pipeline.DisplayRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parse results file: %w", err)
	}
	return records, nil
}
