package service

import (
	"context"

	"go.uber.org/zap"

	"ojcore/internal/common/mq"
	"ojcore/internal/dispatch"
	"ojcore/internal/judge/model"
	"ojcore/internal/judge/verdict"
	appErr "ojcore/pkg/errors"
	"ojcore/pkg/utils/logger"
)

// HandleResultMessage applies one result message. Duplicate and superseded
// results are acknowledged without changes; database failures are returned
// so the transport redelivers.
func (s *SubmitService) HandleResultMessage(ctx context.Context, msg *mq.Message) error {
	res, err := dispatch.DecodeResult(msg)
	if err != nil {
		logger.Warn(ctx, "drop malformed judge result", zap.Error(err))
		return err
	}
	ctx = logger.WithSubmission(ctx, res.SubmissionID, res.Attempt)
	return s.applyResult(ctx, res)
}

func (s *SubmitService) applyResult(ctx context.Context, res model.JudgeResult) error {
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	applied, err := s.submissions.ApplyResult(ctxDB.ctx, res)
	ctxDB.cancel()
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "apply judge result failed")
	}
	if !applied {
		logger.Info(ctx, "judge result ignored, duplicate or superseded",
			zap.String("verdict", string(res.Verdict)))
		return nil
	}

	score := res.Score
	if res.Verdict == verdict.SystemError {
		score = 0
	}
	s.saveStatus(ctx, model.JudgeStatus{
		SubmissionID: res.SubmissionID,
		Attempt:      res.Attempt,
		Verdict:      res.Verdict,
		Score:        score,
		Progress:     model.Progress{TotalTests: len(res.Tests), DoneTests: len(res.Tests)},
		FinishedAt:   res.FinishedAt,
	})
	logger.Info(ctx, "judge result applied",
		zap.String("verdict", string(res.Verdict)),
		zap.Int("score", res.Score),
	)
	return nil
}
