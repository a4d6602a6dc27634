// Package result defines raw sandbox execution results.
package result

// RunResult captures raw data of one sandboxed process.
type RunResult struct {
	ExitCode   int
	TimeMs     int64
	WallTimeMs int64
	MemoryKB   int64
	OutputKB   int64
	Stdout     string
	Stderr     string
	OomKilled  bool
	TimedOut   bool
}

// CompileResult contains compilation outcomes. Log holds the compiler
// diagnostics when OK is false.
type CompileResult struct {
	OK       bool
	ExitCode int
	TimeMs   int64
	MemoryKB int64
	Log      string
}
