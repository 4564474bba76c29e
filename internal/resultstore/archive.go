package resultstore

import (
	"context"
	"errors"
	"log/slog"

	"linkcheck/internal/logging"
	"linkcheck/internal/pipeline"
)

// Archive saves finished runs to the store and mirrors the latest one into
// the results file.
type Archive struct {
	store       *Store
	resultsFile string
	maxRuns     int
	logger      *slog.Logger
}

// NewArchive wires a store and results file. Either may be empty/nil to skip
// that half.
func NewArchive(store *Store, resultsFile string, maxRuns int, logger *slog.Logger) *Archive {
	return &Archive{
		store:       store,
		resultsFile: resultsFile,
		maxRuns:     maxRuns,
		logger:      logging.NewComponentLogger(logger, "resultstore"),
	}
}

// Store returns the backing store, which may be nil.
func (a *Archive) Store() *Store { return a.store }

// ResultsFile returns the results file path.
func (a *Archive) ResultsFile() string { return a.resultsFile }

// Record archives a run. Cancelled runs are kept in history but do not
// replace the results file.
func (a *Archive) Record(ctx context.Context, sessionID string, outcome *pipeline.Outcome) error {
	if a == nil || outcome == nil {
		return nil
	}
	var errs []error
	if a.store != nil {
		if err := a.store.Save(ctx, sessionID, outcome); err != nil {
			errs = append(errs, err)
		} else if removed, err := a.store.Prune(ctx, a.maxRuns); err != nil {
			errs = append(errs, err)
		} else if removed > 0 {
			a.logger.Debug("pruned run history", logging.Int64("removed", removed))
		}
	}
	if a.resultsFile != "" && !outcome.Cancelled {
		if err := WriteResultsFile(a.resultsFile, outcome.Records); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		logging.WarnWithContext(a.logger, "run archive failed", "archive_failed",
			logging.String(logging.FieldRunID, outcome.RunID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run missing from history"),
		)
		return err
	}
	return nil
}
