package verdict

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	base := Input{Stdout: "[0, 1]\n", Expected: "[0,1]", TimeMs: 10, TimeLimitMs: 1000, MemoryKB: 1024, MemoryLimitKB: 262144}

	tests := []struct {
		name  string
		patch func(in *Input)
		want  Verdict
	}{
		{"accepted", func(in *Input) {}, Accepted},
		{"wrong answer", func(in *Input) { in.Stdout = "[1,0]" }, WrongAnswer},
		{"compile error wins", func(in *Input) { in.CompileFailed = true; in.OomKilled = true }, CompileError},
		{"oom before timeout", func(in *Input) { in.OomKilled = true; in.TimedOut = true }, MemoryLimitExceeded},
		{"peak over limit", func(in *Input) { in.MemoryKB = 262145 }, MemoryLimitExceeded},
		{"timed out with correct output", func(in *Input) { in.TimedOut = true }, TimeLimitExceeded},
		{"elapsed at limit", func(in *Input) { in.TimeMs = 1000 }, TimeLimitExceeded},
		{"timeout before runtime error", func(in *Input) { in.TimedOut = true; in.ExitCode = 137 }, TimeLimitExceeded},
		{"non-zero exit", func(in *Input) { in.ExitCode = 1 }, RuntimeError},
		{"stderr output", func(in *Input) { in.Stderr = "Exception in thread main" }, RuntimeError},
		{"output limit", func(in *Input) { in.OutputKB = 2048; in.OutputLimitKB = 1024 }, RuntimeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.patch(&in)
			assert.Equal(t, tt.want, Classify(in))
		})
	}
}

func TestClassifyTimeLimitIgnoresStdout(t *testing.T) {
	for _, stdout := range []string{"[0,1]", "garbage", ""} {
		got := Classify(Input{Stdout: stdout, Expected: "[0,1]", TimeMs: 2500, TimeLimitMs: 2000})
		assert.Equal(t, TimeLimitExceeded, got, stdout)
	}
}

func threeTests() []TestResult {
	return []TestResult{
		{TestID: 1, Verdict: Accepted, Weight: 10, TimeMs: 5, MemoryKB: 100},
		{TestID: 2, Verdict: WrongAnswer, Weight: 10, TimeMs: 7, MemoryKB: 300, Actual: "[1]", Expected: "[2]"},
		{TestID: 3, Verdict: Accepted, Weight: 10, TimeMs: 9, MemoryKB: 200},
	}
}

func TestAggregatorFailFast(t *testing.T) {
	agg := NewAggregator(FailFast)
	agg.Compile(CompileOutcome{OK: true})

	evaluated := 0
	for _, res := range threeTests() {
		evaluated++
		if !agg.Add(res) {
			break
		}
	}

	out := agg.Outcome()
	assert.Equal(t, 2, evaluated, "third test must not run")
	assert.Equal(t, WrongAnswer, out.Verdict)
	require.NotNil(t, out.ErrorRef)
	assert.Equal(t, int64(2), out.ErrorRef.TestID)
	assert.Equal(t, "[2]", out.ErrorRef.Expected)
	assert.Len(t, out.Tests, 2)
	assert.Equal(t, 10, out.Score)
	assert.False(t, agg.Add(threeTests()[2]))
}

func TestAggregatorScoreAll(t *testing.T) {
	agg := NewAggregator(ScoreAll)
	agg.Compile(CompileOutcome{OK: true})
	for _, res := range threeTests() {
		assert.True(t, agg.Add(res))
	}

	out := agg.Outcome()
	assert.Equal(t, WrongAnswer, out.Verdict)
	assert.Equal(t, 20, out.Score)
	require.NotNil(t, out.ErrorRef)
	assert.Equal(t, int64(2), out.ErrorRef.TestID)
	assert.Len(t, out.Tests, 3)
	assert.Equal(t, int64(9), out.TimeMs)
	assert.Equal(t, int64(300), out.MemoryKB)
}

func TestAggregatorAllAccepted(t *testing.T) {
	agg := NewAggregator(ScoreAll)
	agg.Add(TestResult{TestID: 1, Verdict: Accepted, Weight: 10})
	agg.Add(TestResult{TestID: 2, Verdict: Accepted, Weight: 5})

	out := agg.Outcome()
	assert.Equal(t, Accepted, out.Verdict)
	assert.Equal(t, 15, out.Score)
	assert.Nil(t, out.ErrorRef)
}

func TestAggregatorCompileError(t *testing.T) {
	for _, mode := range []AggregationMode{FailFast, ScoreAll} {
		agg := NewAggregator(mode)
		agg.Compile(CompileOutcome{OK: false, Info: "Main.java:3: error: ';' expected"})

		assert.False(t, agg.Add(TestResult{TestID: 1, Verdict: Accepted, Weight: 10}))
		out := agg.Outcome()
		assert.Equal(t, CompileError, out.Verdict, mode)
		assert.Empty(t, out.Tests)
		assert.Zero(t, out.Score)
		assert.Contains(t, out.CompileInfo, "expected")
	}
}

func TestParseAggregationMode(t *testing.T) {
	assert.Equal(t, ScoreAll, ParseAggregationMode(" SCORE_ALL "))
	assert.Equal(t, FailFast, ParseAggregationMode(""))
	assert.Equal(t, FailFast, ParseAggregationMode("unknown"))
}

func TestTruncateKeepsRunes(t *testing.T) {
	s := strings.Repeat("é", 10)
	got := Truncate(s, 5)
	assert.Equal(t, "éé", got)
	assert.Equal(t, "abc", Truncate("abc", 10))
}

func TestVerdictTerminal(t *testing.T) {
	assert.False(t, Pending.Terminal())
	assert.False(t, Judging.Terminal())
	assert.True(t, SystemError.Terminal())
	assert.Equal(t, "TLE", TimeLimitExceeded.Short())
}
