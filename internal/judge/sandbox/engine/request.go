package engine

import (
	"path/filepath"

	"ojcore/internal/judge/sandbox/security"
	"ojcore/internal/judge/sandbox/spec"
)

func buildInitRequest(cfg Config, runSpec spec.RunSpec, iso security.IsolationProfile) spec.InitRequest {
	if cfg.SeccompDir != "" && iso.SeccompProfile != "" && !filepath.IsAbs(iso.SeccompProfile) {
		iso.SeccompProfile = filepath.Join(cfg.SeccompDir, iso.SeccompProfile)
	}
	return spec.InitRequest{
		RunSpec:       runSpec,
		Isolation:     iso,
		EnableSeccomp: cfg.EnableSeccomp,
		EnableNs:      cfg.EnableNamespaces,
	}
}

func validateRunSpec(runSpec spec.RunSpec) error {
	switch {
	case runSpec.SubmissionID == "":
		return errRequired("submission id")
	case runSpec.TestID == "":
		return errRequired("test id")
	case runSpec.WorkDir == "":
		return errRequired("work dir")
	case len(runSpec.Cmd) == 0:
		return errRequired("command")
	case runSpec.Profile == "":
		return errRequired("profile")
	}
	return nil
}
