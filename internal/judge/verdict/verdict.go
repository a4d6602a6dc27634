// Package verdict classifies test executions and aggregates them into a
// submission verdict.
package verdict

import "strings"

// Verdict is the outcome of a single test or of a whole submission.
type Verdict string

const (
	Pending             Verdict = "PENDING"
	Judging             Verdict = "JUDGING"
	Accepted            Verdict = "ACCEPTED"
	WrongAnswer         Verdict = "WRONG_ANSWER"
	TimeLimitExceeded   Verdict = "TIME_LIMIT_EXCEEDED"
	MemoryLimitExceeded Verdict = "MEMORY_LIMIT_EXCEEDED"
	RuntimeError        Verdict = "RUNTIME_ERROR"
	CompileError        Verdict = "COMPILE_ERROR"
	SystemError         Verdict = "SYSTEM_ERROR"
)

var shortNames = map[Verdict]string{
	Pending:             "PD",
	Judging:             "JG",
	Accepted:            "AC",
	WrongAnswer:         "WA",
	TimeLimitExceeded:   "TLE",
	MemoryLimitExceeded: "MLE",
	RuntimeError:        "RE",
	CompileError:        "CE",
	SystemError:         "SE",
}

// Short returns the conventional abbreviation, used as a metrics label.
func (v Verdict) Short() string {
	if s, ok := shortNames[v]; ok {
		return s
	}
	return string(v)
}

// Terminal reports whether v is a final verdict.
func (v Verdict) Terminal() bool {
	return v != Pending && v != Judging && v != ""
}

// Valid reports whether v belongs to the closed verdict set.
func (v Verdict) Valid() bool {
	_, ok := shortNames[v]
	return ok
}

// AggregationMode selects how per-test verdicts combine.
type AggregationMode string

const (
	// FailFast stops at the first test that is not accepted.
	FailFast AggregationMode = "fail_fast"
	// ScoreAll runs every test and sums accepted weights.
	ScoreAll AggregationMode = "score_all"
)

// ParseAggregationMode maps stored values to a mode, defaulting to FailFast.
func ParseAggregationMode(s string) AggregationMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ScoreAll), "scoreall", "all":
		return ScoreAll
	default:
		return FailFast
	}
}

// TestResult is the recorded outcome of one test.
type TestResult struct {
	TestID   int64   `json:"test_id"`
	Verdict  Verdict `json:"verdict"`
	TimeMs   int64   `json:"time_ms"`
	MemoryKB int64   `json:"memory_kb"`
	ExitCode int     `json:"exit_code"`
	Weight   int     `json:"weight"`
	Score    int     `json:"score"`
	Sample   bool    `json:"sample,omitempty"`
	Actual   string  `json:"actual,omitempty"`
	Expected string  `json:"expected,omitempty"`
	Stderr   string  `json:"stderr,omitempty"`
}

// ErrorRef points at the first failing test of a submission.
type ErrorRef struct {
	TestID   int64   `json:"test_id"`
	Verdict  Verdict `json:"verdict"`
	Actual   string  `json:"actual,omitempty"`
	Expected string  `json:"expected,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// CompileOutcome is the result of building the harness.
type CompileOutcome struct {
	OK       bool
	Info     string
	TimeMs   int64
	MemoryKB int64
}

// Outcome is the aggregated result of judging one submission attempt.
type Outcome struct {
	Verdict     Verdict
	Score       int
	TimeMs      int64
	MemoryKB    int64
	CompileInfo string
	ErrorRef    *ErrorRef
	Tests       []TestResult
}
