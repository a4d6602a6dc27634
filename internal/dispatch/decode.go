package dispatch

import (
	"encoding/json"
	"strconv"

	"ojcore/internal/common/mq"
	"ojcore/internal/judge/model"
	appErr "ojcore/pkg/errors"
)

// DecodeJob parses a job message. Malformed messages are Permanent so the
// consumer sends them straight to the dead letter topic.
func DecodeJob(msg *mq.Message) (model.JudgeJob, error) {
	var job model.JudgeJob
	if msg == nil {
		return job, Permanent(appErr.New(appErr.InvalidParams).WithMessage("message is nil"))
	}
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		return job, Permanent(appErr.Wrapf(err, appErr.InvalidFormat, "decode judge job failed"))
	}
	if err := job.Validate(); err != nil {
		return job, Permanent(err)
	}
	if err := checkAttempt(msg, job.Attempt); err != nil {
		return job, err
	}
	return job, nil
}

// DecodeResult parses a result message.
func DecodeResult(msg *mq.Message) (model.JudgeResult, error) {
	var res model.JudgeResult
	if msg == nil {
		return res, Permanent(appErr.New(appErr.InvalidParams).WithMessage("message is nil"))
	}
	if err := json.Unmarshal(msg.Body, &res); err != nil {
		return res, Permanent(appErr.Wrapf(err, appErr.InvalidFormat, "decode judge result failed"))
	}
	if res.SubmissionID == "" {
		return res, Permanent(appErr.ValidationError("submission_id", "required"))
	}
	if !res.Verdict.Terminal() || !res.Verdict.Valid() {
		return res, Permanent(appErr.ValidationError("verdict", "must be terminal"))
	}
	if err := checkAttempt(msg, res.Attempt); err != nil {
		return res, err
	}
	return res, nil
}

func checkAttempt(msg *mq.Message, attempt int64) error {
	raw, ok := msg.GetHeader(model.AttemptHeader)
	if !ok {
		return nil
	}
	header, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || header != attempt {
		return Permanent(appErr.Newf(appErr.InvalidFormat, "attempt header %q does not match body %d", raw, attempt))
	}
	return nil
}
