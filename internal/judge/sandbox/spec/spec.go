// Package spec defines the execution specification and resource limits.
package spec

// ResourceLimit describes hard limits enforced by the sandbox.
type ResourceLimit struct {
	CPUTimeMs  int64 `yaml:"cpuTimeMs" json:"cpu_time_ms"`
	WallTimeMs int64 `yaml:"wallTimeMs" json:"wall_time_ms"`
	MemoryMB   int64 `yaml:"memoryMB" json:"memory_mb"`
	StackMB    int64 `yaml:"stackMB" json:"stack_mb"`
	OutputMB   int64 `yaml:"outputMB" json:"output_mb"`
	PIDs       int64 `yaml:"pids" json:"pids"`
}

// Merge returns l with every positive field of override applied.
func (l ResourceLimit) Merge(override ResourceLimit) ResourceLimit {
	if override.CPUTimeMs > 0 {
		l.CPUTimeMs = override.CPUTimeMs
	}
	if override.WallTimeMs > 0 {
		l.WallTimeMs = override.WallTimeMs
	}
	if override.MemoryMB > 0 {
		l.MemoryMB = override.MemoryMB
	}
	if override.StackMB > 0 {
		l.StackMB = override.StackMB
	}
	if override.OutputMB > 0 {
		l.OutputMB = override.OutputMB
	}
	if override.PIDs > 0 {
		l.PIDs = override.PIDs
	}
	return l
}

// MountSpec describes a bind mount inside the sandbox.
type MountSpec struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	ReadOnly bool   `json:"read_only"`
}

// RunSpec is the unified execution specification for one task.
type RunSpec struct {
	SubmissionID string        `json:"submission_id"`
	TestID       string        `json:"test_id"`
	WorkDir      string        `json:"work_dir"`
	Cmd          []string      `json:"cmd"`
	Env          []string      `json:"env,omitempty"`
	StdinPath    string        `json:"stdin_path,omitempty"`
	StdoutPath   string        `json:"stdout_path,omitempty"`
	StderrPath   string        `json:"stderr_path,omitempty"`
	BindMounts   []MountSpec   `json:"bind_mounts,omitempty"`
	Profile      string        `json:"profile"`
	Limits       ResourceLimit `json:"limits"`
}
