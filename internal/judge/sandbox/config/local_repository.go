package config

import (
	"context"

	"ojcore/internal/harness"
	"ojcore/internal/judge/sandbox/profile"
	"ojcore/internal/judge/sandbox/security"
	"ojcore/internal/judge/sandbox/spec"
	appErr "ojcore/pkg/errors"
)

// Limits applied when neither the profile nor the job sets a value.
var (
	DefaultCompileLimits = spec.ResourceLimit{
		CPUTimeMs:  10000,
		WallTimeMs: 20000,
		MemoryMB:   1024,
		OutputMB:   16,
		PIDs:       128,
	}
	DefaultRunLimits = spec.ResourceLimit{
		CPUTimeMs: 1000,
		MemoryMB:  128,
		StackMB:   64,
		OutputMB:  64,
		PIDs:      64,
	}
)

// LocalRepository serves language specs and task profiles from memory.
// Every language of the harness table is present; configured entries
// override the built-in values field by field.
type LocalRepository struct {
	languages map[string]profile.LanguageSpec
	profiles  map[string]profile.TaskProfile
}

// NewLocalRepository creates a repository from config lists.
func NewLocalRepository(languages []profile.LanguageSpec, profiles []profile.TaskProfile) *LocalRepository {
	langMap := make(map[string]profile.LanguageSpec, len(harness.Languages))
	for lang, entry := range harness.Languages {
		langMap[string(lang)] = entry.Runtime
	}
	for _, lang := range languages {
		id := canonicalID(lang.ID)
		if id == "" {
			continue
		}
		base, ok := langMap[id]
		if !ok {
			continue
		}
		langMap[id] = base.Merge(lang)
	}

	profileMap := make(map[string]profile.TaskProfile)
	for id := range langMap {
		for _, taskType := range []profile.TaskType{profile.TaskTypeCompile, profile.TaskTypeRun} {
			profileMap[profile.Name(id, taskType)] = profile.TaskProfile{
				LanguageID:    id,
				TaskType:      taskType,
				DefaultLimits: defaultLimits(taskType),
			}
		}
	}
	for _, prof := range profiles {
		id := canonicalID(prof.LanguageID)
		if prof.TaskType == "" || id == "" {
			continue
		}
		prof.LanguageID = id
		prof.DefaultLimits = defaultLimits(prof.TaskType).Merge(prof.DefaultLimits)
		profileMap[profile.Name(id, prof.TaskType)] = prof
	}
	return &LocalRepository{languages: langMap, profiles: profileMap}
}

// GetLanguageSpec returns a language spec by id or alias.
func (r *LocalRepository) GetLanguageSpec(ctx context.Context, id string) (profile.LanguageSpec, error) {
	if id == "" {
		return profile.LanguageSpec{}, appErr.ValidationError("language_id", "required")
	}
	lang, ok := r.languages[canonicalID(id)]
	if !ok {
		return profile.LanguageSpec{}, appErr.New(appErr.UnsupportedLanguage).WithMessagef("language %s is not supported", id)
	}
	return lang, nil
}

// GetTaskProfile returns a task profile by type and language.
func (r *LocalRepository) GetTaskProfile(ctx context.Context, taskType profile.TaskType, languageID string) (profile.TaskProfile, error) {
	if taskType == "" || languageID == "" {
		return profile.TaskProfile{}, appErr.ValidationError("task_profile", "required")
	}
	prof, ok := r.profiles[profile.Name(canonicalID(languageID), taskType)]
	if !ok {
		return profile.TaskProfile{}, appErr.New(appErr.NotFound).WithMessage("task profile not found")
	}
	return prof, nil
}

// Resolve maps a profile name to isolation settings.
func (r *LocalRepository) Resolve(profileName string) (security.IsolationProfile, error) {
	if profileName == "" {
		return security.IsolationProfile{}, appErr.ValidationError("profile", "required")
	}
	prof, ok := r.profiles[profileName]
	if !ok {
		return security.IsolationProfile{}, appErr.New(appErr.NotFound).WithMessagef("profile %s not found", profileName)
	}
	return security.IsolationProfile{
		RootFS:         prof.RootFS,
		SeccompProfile: prof.SeccompProfile,
		DisableNetwork: true,
		Hostname:       "sandbox",
	}, nil
}

func defaultLimits(taskType profile.TaskType) spec.ResourceLimit {
	if taskType == profile.TaskTypeCompile {
		return DefaultCompileLimits
	}
	return DefaultRunLimits
}

func canonicalID(id string) string {
	entry, err := harness.LookupLanguage(id)
	if err != nil {
		return ""
	}
	return string(entry.Language)
}
