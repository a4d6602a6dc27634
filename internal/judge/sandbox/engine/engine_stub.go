//go:build !linux

package engine

import (
	"context"

	"ojcore/internal/judge/sandbox/result"
	"ojcore/internal/judge/sandbox/spec"
	appErr "ojcore/pkg/errors"
)

type stubEngine struct{}

// NewEngine returns an engine that refuses to run on non-linux hosts.
func NewEngine(cfg Config, resolver ProfileResolver) (Engine, error) {
	return &stubEngine{}, nil
}

func (s *stubEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return result.RunResult{}, err
	}
	return result.RunResult{}, errUnsupported()
}

func (s *stubEngine) KillSubmission(ctx context.Context, submissionID string) error {
	return errUnsupported()
}

func errUnsupported() error {
	return appErr.New(appErr.SandboxError).WithMessage("sandbox engine is only supported on linux")
}
