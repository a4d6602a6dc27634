package verdict

import "unicode/utf8"

// Diagnostic text kept in results is capped to this many bytes.
const MaxInfoBytes = 4096

// Aggregator folds per-test results into an Outcome. Not safe for
// concurrent use; one aggregator serves one submission attempt.
type Aggregator struct {
	mode      AggregationMode
	compile   *CompileOutcome
	tests     []TestResult
	firstFail int
	stopped   bool
}

// NewAggregator creates an aggregator for mode.
func NewAggregator(mode AggregationMode) *Aggregator {
	if mode != ScoreAll {
		mode = FailFast
	}
	return &Aggregator{mode: mode, firstFail: -1}
}

// Mode returns the aggregation mode in effect.
func (a *Aggregator) Mode() AggregationMode {
	return a.mode
}

// Compile records the compile step. A failed compile ends aggregation.
func (a *Aggregator) Compile(c CompileOutcome) {
	c.Info = Truncate(c.Info, MaxInfoBytes)
	a.compile = &c
	if !c.OK {
		a.stopped = true
	}
}

// Add records a test result and reports whether more tests should run.
func (a *Aggregator) Add(res TestResult) bool {
	if a.stopped {
		return false
	}
	if res.Verdict == Accepted {
		res.Score = res.Weight
	} else {
		res.Score = 0
	}
	res.Actual = Truncate(res.Actual, MaxInfoBytes)
	res.Expected = Truncate(res.Expected, MaxInfoBytes)
	res.Stderr = Truncate(res.Stderr, MaxInfoBytes)
	a.tests = append(a.tests, res)
	if res.Verdict != Accepted && a.firstFail < 0 {
		a.firstFail = len(a.tests) - 1
		if a.mode == FailFast {
			a.stopped = true
		}
	}
	return !a.stopped
}

// Tests returns the results recorded so far.
func (a *Aggregator) Tests() []TestResult {
	return append([]TestResult(nil), a.tests...)
}

// Outcome returns the aggregated result.
func (a *Aggregator) Outcome() Outcome {
	out := Outcome{Verdict: Accepted, Tests: a.Tests()}
	if a.compile != nil {
		out.CompileInfo = a.compile.Info
		if !a.compile.OK {
			out.Verdict = CompileError
			out.Tests = nil
			return out
		}
	}
	for _, t := range a.tests {
		out.Score += t.Score
		if t.TimeMs > out.TimeMs {
			out.TimeMs = t.TimeMs
		}
		if t.MemoryKB > out.MemoryKB {
			out.MemoryKB = t.MemoryKB
		}
	}
	if a.firstFail >= 0 {
		ff := a.tests[a.firstFail]
		out.Verdict = ff.Verdict
		out.ErrorRef = &ErrorRef{
			TestID:   ff.TestID,
			Verdict:  ff.Verdict,
			Actual:   ff.Actual,
			Expected: ff.Expected,
			Message:  ff.Stderr,
		}
	}
	return out
}

// Truncate caps s at limit bytes without splitting a UTF-8 sequence.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
