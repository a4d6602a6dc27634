package sandbox

import (
	"context"

	"ojcore/internal/judge/model"
)

// StatusReporter persists intermediate judge progress.
type StatusReporter interface {
	ReportStatus(ctx context.Context, status model.JudgeStatus) error
}

// StaleFunc reports whether the job being executed has been superseded by
// a newer attempt.
type StaleFunc func(ctx context.Context) (bool, error)
