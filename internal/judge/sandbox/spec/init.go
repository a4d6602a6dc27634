package spec

import "ojcore/internal/judge/sandbox/security"

// InitRequest is written as one JSON document to the stdin of sandbox-init.
type InitRequest struct {
	RunSpec       RunSpec                   `json:"run_spec"`
	Isolation     security.IsolationProfile `json:"isolation"`
	EnableSeccomp bool                      `json:"enable_seccomp"`
	EnableNs      bool                      `json:"enable_ns"`
}
