// Package model defines the messages exchanged between the submit and judge services.
package model

import "ojcore/internal/judge/verdict"

// Header carrying the judge attempt on both topics.
const AttemptHeader = "x-judge-attempt"

// JudgeJob is the payload published on the job topic.
type JudgeJob struct {
	SubmissionID    string                  `json:"submission_id"`
	Attempt         int64                   `json:"attempt"`
	ProblemID       int64                   `json:"problem_id"`
	UserID          int64                   `json:"user_id"`
	Language        string                  `json:"language"`
	TimeLimitMs     int64                   `json:"time_limit_ms"`
	MemoryLimitMB   int64                   `json:"memory_limit_mb"`
	AggregationMode verdict.AggregationMode `json:"aggregation_mode"`
	Tests           []TestSpec              `json:"tests"`

	// Exactly one of HarnessSource and HarnessRef is set.
	HarnessSource string      `json:"harness_source,omitempty"`
	HarnessRef    *HarnessRef `json:"harness_ref,omitempty"`

	CreatedAt int64 `json:"created_at"`
}

// TestSpec is one test case with inputs already in canonical stdin form.
type TestSpec struct {
	TestID   int64  `json:"test_id"`
	Stdin    string `json:"stdin"`
	Expected string `json:"expected"`
	Weight   int    `json:"weight"`
	Sample   bool   `json:"sample"`
}

// HarnessRef points at an offloaded harness in object storage.
type HarnessRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Validate checks the fields every consumer relies on.
func (j JudgeJob) Validate() error {
	switch {
	case j.SubmissionID == "":
		return errField("submission_id")
	case j.Attempt <= 0:
		return errField("attempt")
	case j.Language == "":
		return errField("language")
	case j.HarnessSource == "" && j.HarnessRef == nil:
		return errField("harness")
	}
	return nil
}
