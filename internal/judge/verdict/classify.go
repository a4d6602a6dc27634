package verdict

import (
	"strings"

	"ojcore/internal/harness"
)

// Input is everything needed to classify one test execution.
type Input struct {
	CompileFailed bool

	ExitCode  int
	TimedOut  bool
	OomKilled bool
	TimeMs    int64
	MemoryKB  int64
	OutputKB  int64
	Stdout    string
	Stderr    string

	Expected string

	TimeLimitMs   int64
	MemoryLimitKB int64
	OutputLimitKB int64
}

// Classify maps an execution to a verdict. Priority is compile error, memory,
// time, runtime error, then output comparison.
func Classify(in Input) Verdict {
	switch {
	case in.CompileFailed:
		return CompileError
	case in.OomKilled, in.MemoryLimitKB > 0 && in.MemoryKB > in.MemoryLimitKB:
		return MemoryLimitExceeded
	case in.TimedOut, in.TimeLimitMs > 0 && in.TimeMs >= in.TimeLimitMs:
		return TimeLimitExceeded
	case in.ExitCode != 0, strings.TrimSpace(in.Stderr) != "":
		return RuntimeError
	case in.OutputLimitKB > 0 && in.OutputKB > in.OutputLimitKB:
		return RuntimeError
	case harness.Equal(in.Stdout, in.Expected):
		return Accepted
	default:
		return WrongAnswer
	}
}
