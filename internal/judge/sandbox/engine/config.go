package engine

import "ojcore/internal/judge/sandbox/security"

// ProfileResolver resolves a profile name into an isolation profile.
type ProfileResolver interface {
	Resolve(profile string) (security.IsolationProfile, error)
}

// Config controls sandbox engine behavior.
type Config struct {
	CgroupRoot           string  `yaml:"cgroupRoot"`
	SeccompDir           string  `yaml:"seccompDir"`
	HelperPath           string  `yaml:"helperPath"`
	StdoutStderrMaxBytes int64   `yaml:"stdoutStderrMaxBytes"`
	CPUCores             float64 `yaml:"cpuCores"`
	EnableSeccomp        bool    `yaml:"enableSeccomp"`
	EnableCgroup         bool    `yaml:"enableCgroup"`
	EnableNamespaces     bool    `yaml:"enableNamespaces"`
}

const (
	defaultStdoutStderrMaxBytes int64 = 64 * 1024
	defaultHelperPath                 = "sandbox-init"
	cpuPeriodUs                       = 100000
)

func (c Config) withDefaults() Config {
	if c.StdoutStderrMaxBytes <= 0 {
		c.StdoutStderrMaxBytes = defaultStdoutStderrMaxBytes
	}
	if c.HelperPath == "" {
		c.HelperPath = defaultHelperPath
	}
	if c.CgroupRoot == "" {
		c.CgroupRoot = "/sys/fs/cgroup/ojcore"
	}
	return c
}
