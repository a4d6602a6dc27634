package model

import (
	"ojcore/internal/judge/verdict"
	appErr "ojcore/pkg/errors"
)

// JudgeResult is the payload published on the result topic.
type JudgeResult struct {
	SubmissionID string               `json:"submission_id"`
	Attempt      int64                `json:"attempt"`
	Verdict      verdict.Verdict      `json:"verdict"`
	Score        int                  `json:"score"`
	TimeMs       int64                `json:"time_ms"`
	MemoryKB     int64                `json:"memory_kb"`
	CompileInfo  string               `json:"compile_info,omitempty"`
	JudgeInfo    string               `json:"judge_info,omitempty"`
	ErrorRef     *verdict.ErrorRef    `json:"error_ref,omitempty"`
	Tests        []verdict.TestResult `json:"tests,omitempty"`
	FinishedAt   int64                `json:"finished_at"`
}

// NewJudgeResult converts an aggregated outcome into a result message.
func NewJudgeResult(job JudgeJob, out verdict.Outcome, finishedAt int64) JudgeResult {
	return JudgeResult{
		SubmissionID: job.SubmissionID,
		Attempt:      job.Attempt,
		Verdict:      out.Verdict,
		Score:        out.Score,
		TimeMs:       out.TimeMs,
		MemoryKB:     out.MemoryKB,
		CompileInfo:  out.CompileInfo,
		ErrorRef:     out.ErrorRef,
		Tests:        out.Tests,
		FinishedAt:   finishedAt,
	}
}

// SystemError builds a SYSTEM_ERROR result. Partial tests are kept for
// diagnostics but never contribute to the score.
func SystemError(job JudgeJob, partial []verdict.TestResult, info string, finishedAt int64) JudgeResult {
	return JudgeResult{
		SubmissionID: job.SubmissionID,
		Attempt:      job.Attempt,
		Verdict:      verdict.SystemError,
		JudgeInfo:    info,
		Tests:        partial,
		FinishedAt:   finishedAt,
	}
}

func errField(field string) error {
	return appErr.ValidationError(field, "required")
}
