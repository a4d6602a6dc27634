package runner

import (
	"math"

	"ojcore/internal/judge/sandbox/profile"
	"ojcore/internal/judge/sandbox/spec"
)

// WallPolicy derives the wall clock limit from the CPU limit.
type WallPolicy struct {
	Factor  float64 `yaml:"factor"`
	GraceMs int64   `yaml:"graceMs"`
}

// DefaultWallPolicy doubles the CPU limit and adds one second.
var DefaultWallPolicy = WallPolicy{Factor: 2, GraceMs: 1000}

// ResolveLimits merges job limits over the profile defaults, scales CPU time
// and memory by the language multipliers, and derives the wall limit.
func ResolveLimits(job, defaults spec.ResourceLimit, lang profile.LanguageSpec, wall WallPolicy) spec.ResourceLimit {
	limits := defaults.Merge(job)
	limits.CPUTimeMs = scaleLimit(limits.CPUTimeMs, lang.TimeMultiplier)
	limits.MemoryMB = scaleLimit(limits.MemoryMB, lang.MemoryMultiplier)
	if wall.Factor <= 0 {
		wall.Factor = DefaultWallPolicy.Factor
	}
	if limits.CPUTimeMs > 0 {
		limits.WallTimeMs = int64(math.Ceil(float64(limits.CPUTimeMs)*wall.Factor)) + wall.GraceMs
	}
	return limits
}

func scaleLimit(value int64, multiplier float64) int64 {
	if value <= 0 {
		return 0
	}
	if multiplier <= 0 {
		return value
	}
	return int64(math.Ceil(float64(value) * multiplier))
}
