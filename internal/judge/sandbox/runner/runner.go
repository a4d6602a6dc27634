// Package runner turns compile and run tasks into sandbox RunSpecs.
package runner

import (
	"context"

	"ojcore/internal/judge/sandbox/profile"
	"ojcore/internal/judge/sandbox/result"
	"ojcore/internal/judge/sandbox/spec"
)

// CompileRequest describes one compilation task. Source is written to
// Language.SourceFile inside WorkDir before the compiler runs.
type CompileRequest struct {
	SubmissionID string
	Language     profile.LanguageSpec
	Profile      profile.TaskProfile
	WorkDir      string
	Source       string
	Limits       spec.ResourceLimit
}

// RunRequest describes one test execution. WorkDir holds the compiled
// artifacts and is mounted read-only; IODir receives the stdin payload and
// the program output. Limits are final and applied as is.
type RunRequest struct {
	SubmissionID string
	TestID       string
	Language     profile.LanguageSpec
	Profile      profile.TaskProfile
	WorkDir      string
	IODir        string
	Stdin        string
	Limits       spec.ResourceLimit
}

// Runner orchestrates compile and run workflows.
type Runner interface {
	Compile(ctx context.Context, req CompileRequest) (result.CompileResult, error)
	Run(ctx context.Context, req RunRequest) (result.RunResult, error)
	// Abort kills every sandbox still running for the submission.
	Abort(ctx context.Context, submissionID string) error
}
