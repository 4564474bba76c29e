package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrScrape        = errors.New("article scrape error")
	ErrResolve       = errors.New("redirect resolution error")
	ErrCatalog       = errors.New("catalog error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Stage labels reported to clients in terminal failure events.
const (
	StageScrape  = "scrape"
	StageResolve = "resolve"
	StageCatalog = "catalog"
	StageRequest = "request"
	StageUnknown = "internal"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStage maps a run error to the stage label sent with a runFailed event.
func FailureStage(err error) string {
	switch {
	case errors.Is(err, ErrScrape):
		return StageScrape
	case errors.Is(err, ErrCatalog):
		return StageCatalog
	case errors.Is(err, ErrResolve):
		return StageResolve
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return StageRequest
	default:
		return StageUnknown
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
