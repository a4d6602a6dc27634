// Package service accepts submissions, dispatches judge jobs and applies
// the verdicts that come back.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ojcore/internal/common/cache"
	"ojcore/internal/harness"
	"ojcore/internal/judge/model"
	"ojcore/internal/judge/verdict"
	problemRepo "ojcore/internal/problem/repository"
	"ojcore/internal/submit/repository"
	appErr "ojcore/pkg/errors"
	"ojcore/pkg/utils/logger"
)

// AttemptAllocator hands out judge attempts above floor.
type AttemptAllocator interface {
	Next(ctx context.Context, submissionID string, floor int64) (int64, error)
}

// HarnessAttacher puts a harness source on a job, inline or by reference.
type HarnessAttacher interface {
	Attach(ctx context.Context, job *model.JudgeJob, source string) error
	Remove(ctx context.Context, ref *model.HarnessRef) error
}

// JobDispatcher publishes judge jobs.
type JobDispatcher interface {
	DispatchJob(ctx context.Context, job model.JudgeJob) error
}

// StatusStore caches judge status for polling clients.
type StatusStore interface {
	Save(ctx context.Context, status model.JudgeStatus) error
}

// RateLimitConfig holds throttling configuration.
type RateLimitConfig struct {
	UserMax int           `yaml:"userMax"`
	Window  time.Duration `yaml:"window"`
}

// TimeoutConfig holds timeout settings for external calls.
type TimeoutConfig struct {
	DB     time.Duration `yaml:"db"`
	Cache  time.Duration `yaml:"cache"`
	Status time.Duration `yaml:"status"`
}

// Config holds submit service dependencies and settings.
type Config struct {
	Submissions repository.SubmissionRepository
	Problems    problemRepo.ProblemRepository
	Attempts    AttemptAllocator
	Harness     HarnessAttacher
	Dispatcher  JobDispatcher
	Status      StatusStore
	Cache       cache.BasicOps

	MaxCodeBytes   int
	IdempotencyTTL time.Duration
	RateLimit      RateLimitConfig
	Timeouts       TimeoutConfig
}

// SubmitService handles submission intake and dispatch.
type SubmitService struct {
	submissions repository.SubmissionRepository
	problems    problemRepo.ProblemRepository
	attempts    AttemptAllocator
	harness     HarnessAttacher
	dispatcher  JobDispatcher
	status      StatusStore
	cache       cache.BasicOps

	maxCodeBytes   int
	idempotencyTTL time.Duration
	rateLimit      RateLimitConfig
	timeouts       TimeoutConfig
	now            func() time.Time
}

// SubmitRequest describes a submission.
type SubmitRequest struct {
	ProblemID      int64  `json:"problem_id"`
	UserID         int64  `json:"user_id"`
	Language       string `json:"language"`
	SourceCode     string `json:"source_code"`
	IdempotencyKey string `json:"-"`
}

// SubmitResponse is returned once the job is queued.
type SubmitResponse struct {
	SubmissionID string          `json:"submission_id"`
	Attempt      int64           `json:"attempt"`
	Verdict      verdict.Verdict `json:"verdict"`
}

// NewSubmitService creates a new submit service.
func NewSubmitService(cfg Config) (*SubmitService, error) {
	switch {
	case cfg.Submissions == nil:
		return nil, fmt.Errorf("submission repository is required")
	case cfg.Problems == nil:
		return nil, fmt.Errorf("problem repository is required")
	case cfg.Attempts == nil:
		return nil, fmt.Errorf("attempt allocator is required")
	case cfg.Harness == nil:
		return nil, fmt.Errorf("harness store is required")
	case cfg.Dispatcher == nil:
		return nil, fmt.Errorf("dispatcher is required")
	case cfg.Status == nil:
		return nil, fmt.Errorf("status store is required")
	case cfg.Cache == nil:
		return nil, fmt.Errorf("cache is required")
	}
	return &SubmitService{
		submissions:    cfg.Submissions,
		problems:       cfg.Problems,
		attempts:       cfg.Attempts,
		harness:        cfg.Harness,
		dispatcher:     cfg.Dispatcher,
		status:         cfg.Status,
		cache:          cfg.Cache,
		maxCodeBytes:   cfg.MaxCodeBytes,
		idempotencyTTL: cfg.IdempotencyTTL,
		rateLimit:      cfg.RateLimit,
		timeouts:       cfg.Timeouts,
		now:            time.Now,
	}, nil
}

// Submit validates the request, builds the harness and dispatches the first
// judge attempt. Configuration errors such as an unsupported language or
// type tag are returned before anything is stored or published.
func (s *SubmitService) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	lang, err := s.validate(req)
	if err != nil {
		return SubmitResponse{}, err
	}
	if err := s.checkRateLimit(ctx, req.UserID); err != nil {
		return SubmitResponse{}, err
	}

	acquired, existingID, err := s.acquireIdempotency(ctx, req.IdempotencyKey)
	if err != nil {
		return SubmitResponse{}, err
	}
	if !acquired && existingID != "" {
		return SubmitResponse{SubmissionID: existingID, Verdict: verdict.Pending}, nil
	}

	prepared, err := s.prepare(ctx, req.ProblemID, lang, req.SourceCode)
	if err != nil {
		s.releaseIdempotency(ctx, req.IdempotencyKey, acquired)
		return SubmitResponse{}, err
	}

	submission := &repository.Submission{
		SubmissionID: uuid.NewString(),
		ProblemID:    req.ProblemID,
		UserID:       req.UserID,
		Language:     string(lang.Language),
		SourceCode:   req.SourceCode,
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	err = s.submissions.Create(ctxDB.ctx, nil, submission)
	ctxDB.cancel()
	if err != nil {
		s.releaseIdempotency(ctx, req.IdempotencyKey, acquired)
		if errors.Is(err, repository.ErrDuplicateSubmission) {
			return SubmitResponse{}, appErr.Wrap(err, appErr.DuplicateSubmission)
		}
		return SubmitResponse{}, appErr.Wrapf(err, appErr.SubmissionCreateFailed, "create submission failed")
	}
	s.finalizeIdempotency(ctx, req.IdempotencyKey, submission.SubmissionID, acquired)

	ctx = logger.WithSubmission(ctx, submission.SubmissionID, 0)
	attempt, err := s.dispatch(ctx, submission, prepared)
	resp := SubmitResponse{SubmissionID: submission.SubmissionID, Attempt: attempt, Verdict: verdict.Pending}
	if err != nil {
		resp.Verdict = verdict.SystemError
		return resp, err
	}
	logger.Info(ctx, "submission dispatched", zap.Int64("attempt", attempt), zap.Int64("problem_id", req.ProblemID))
	return resp, nil
}

// Rejudge dispatches a new attempt for an existing submission. Results of
// earlier attempts are ignored once the new attempt is recorded.
func (s *SubmitService) Rejudge(ctx context.Context, submissionID string) (SubmitResponse, error) {
	submission, err := s.GetSubmission(ctx, submissionID)
	if err != nil {
		return SubmitResponse{}, err
	}
	lang, err := harness.LookupLanguage(submission.Language)
	if err != nil {
		return SubmitResponse{}, err
	}
	prepared, err := s.prepare(ctx, submission.ProblemID, lang, submission.SourceCode)
	if err != nil {
		return SubmitResponse{}, err
	}
	ctx = logger.WithSubmission(ctx, submissionID, 0)
	attempt, err := s.dispatch(ctx, submission, prepared)
	resp := SubmitResponse{SubmissionID: submissionID, Attempt: attempt, Verdict: verdict.Pending}
	if err != nil {
		resp.Verdict = verdict.SystemError
		return resp, err
	}
	logger.Info(ctx, "submission rejudged", zap.Int64("attempt", attempt))
	return resp, nil
}

// GetSubmission returns a submission through the read cache.
func (s *SubmitService) GetSubmission(ctx context.Context, submissionID string) (*repository.Submission, error) {
	if strings.TrimSpace(submissionID) == "" {
		return nil, appErr.ValidationError("submission_id", "required")
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	submission, err := s.submissions.GetByID(ctxDB.ctx, nil, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			return nil, appErr.New(appErr.SubmissionNotFound).WithMessage("submission not found")
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "get submission failed")
	}
	return submission, nil
}

func (s *SubmitService) validate(req SubmitRequest) (harness.LanguageEntry, error) {
	if req.ProblemID <= 0 {
		return harness.LanguageEntry{}, appErr.ValidationError("problem_id", "required")
	}
	if req.UserID <= 0 {
		return harness.LanguageEntry{}, appErr.ValidationError("user_id", "required")
	}
	if strings.TrimSpace(req.SourceCode) == "" {
		return harness.LanguageEntry{}, appErr.ValidationError("source_code", "required")
	}
	if s.maxCodeBytes > 0 && len(req.SourceCode) > s.maxCodeBytes {
		return harness.LanguageEntry{}, appErr.New(appErr.CodeTooLarge).WithMessage("source code too large")
	}
	return harness.LookupLanguage(req.Language)
}

// dispatch allocates an attempt and publishes the job. When publishing
// fails after the dispatcher's retries, the submission is closed with
// SYSTEM_ERROR so it never stays PENDING.
func (s *SubmitService) dispatch(ctx context.Context, submission *repository.Submission, p prepared) (int64, error) {
	floor := max(submission.JudgeAttempt, submission.PendingAttempt)
	attempt, err := s.attempts.Next(ctx, submission.SubmissionID, floor)
	if err != nil {
		return 0, err
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	err = s.submissions.MarkDispatched(ctxDB.ctx, submission.SubmissionID, attempt)
	ctxDB.cancel()
	if errors.Is(err, repository.ErrStaleAttempt) {
		return attempt, appErr.Wrap(err, appErr.StaleJudgeAttempt)
	}
	if err != nil {
		return attempt, appErr.Wrapf(err, appErr.DatabaseError, "mark submission pending failed")
	}

	job := p.job(submission, attempt, s.now())
	if err := s.harness.Attach(ctx, &job, p.program.Source); err != nil {
		s.failDispatch(ctx, job, err)
		return attempt, err
	}
	s.saveStatus(ctx, model.JudgeStatus{
		SubmissionID: submission.SubmissionID,
		Attempt:      attempt,
		Verdict:      verdict.Pending,
		Progress:     model.Progress{TotalTests: len(job.Tests)},
		ReceivedAt:   job.CreatedAt,
	})
	if err := s.dispatcher.DispatchJob(ctx, job); err != nil {
		s.failDispatch(ctx, job, err)
		return attempt, err
	}
	return attempt, nil
}

func (s *SubmitService) failDispatch(ctx context.Context, job model.JudgeJob, cause error) {
	logger.Error(ctx, "dispatch failed, closing submission with system error", zap.Error(cause))
	res := model.SystemError(job, nil, verdict.Truncate("dispatch failed: "+cause.Error(), verdict.MaxInfoBytes), s.now().Unix())
	if err := s.applyResult(context.WithoutCancel(ctx), res); err != nil {
		logger.Error(ctx, "record dispatch failure failed", zap.Error(err))
	}
	if job.HarnessRef != nil {
		if err := s.harness.Remove(context.WithoutCancel(ctx), job.HarnessRef); err != nil {
			logger.Warn(ctx, "remove undispatched harness failed", zap.Error(err))
		}
	}
}

func (s *SubmitService) saveStatus(ctx context.Context, status model.JudgeStatus) {
	ctxStatus := withTimeout(ctx, s.timeouts.Status)
	defer ctxStatus.cancel()
	if err := s.status.Save(ctxStatus.ctx, status); err != nil {
		logger.Warn(ctx, "save judge status failed", zap.Error(err))
	}
}

type timeoutCtx struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func withTimeout(ctx context.Context, timeout time.Duration) timeoutCtx {
	if timeout <= 0 {
		return timeoutCtx{ctx: ctx, cancel: func() {}}
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	return timeoutCtx{ctx: ctxTimeout, cancel: cancel}
}
