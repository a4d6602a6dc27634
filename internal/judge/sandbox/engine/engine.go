// Package engine runs one process inside an isolated, resource-bounded sandbox.
package engine

import (
	"context"

	"ojcore/internal/judge/sandbox/result"
	"ojcore/internal/judge/sandbox/spec"
)

// Engine executes a RunSpec inside an isolated sandbox.
// Program failures are reported in the RunResult; only infrastructure
// failures are returned as errors.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error)
	KillSubmission(ctx context.Context, submissionID string) error
}
