package model

import "ojcore/internal/judge/verdict"

// Progress tracks how many tests have run.
type Progress struct {
	TotalTests int `json:"total_tests"`
	DoneTests  int `json:"done_tests"`
}

// JudgeStatus is the cached view of a submission while it is being judged.
type JudgeStatus struct {
	SubmissionID string          `json:"submission_id"`
	Attempt      int64           `json:"attempt"`
	Verdict      verdict.Verdict `json:"verdict"`
	Score        int             `json:"score"`
	Progress     Progress        `json:"progress"`
	ErrorCode    int             `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	ReceivedAt   int64           `json:"received_at"`
	FinishedAt   int64           `json:"finished_at,omitempty"`
}
