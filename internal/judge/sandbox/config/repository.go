// Package config resolves language specs and task profiles for the sandbox.
package config

import (
	"context"

	"ojcore/internal/judge/sandbox/profile"
)

// LanguageSpecRepository looks up how to compile and run one language.
type LanguageSpecRepository interface {
	GetLanguageSpec(ctx context.Context, id string) (profile.LanguageSpec, error)
}

// TaskProfileRepository looks up the sandbox limits for a compile or run
// step of a language.
type TaskProfileRepository interface {
	GetTaskProfile(ctx context.Context, taskType profile.TaskType, languageID string) (profile.TaskProfile, error)
}

var (
	_ LanguageSpecRepository = (*LocalRepository)(nil)
	_ TaskProfileRepository  = (*LocalRepository)(nil)
)
