// Package service consumes judge jobs, runs them in the sandbox and
// publishes the verdicts.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"ojcore/internal/common/mq"
	"ojcore/internal/dispatch"
	"ojcore/internal/judge/model"
	"ojcore/internal/judge/sandbox"
	"ojcore/internal/judge/verdict"
	appErr "ojcore/pkg/errors"
	"ojcore/pkg/utils/logger"
)

// Executor runs one job. *sandbox.Worker implements it.
type Executor interface {
	Execute(ctx context.Context, job model.JudgeJob, harnessSource string, check sandbox.StaleFunc) (verdict.Outcome, error)
}

// HarnessFetcher resolves the harness source of a job and drops offloaded
// harnesses once their attempt is finished.
type HarnessFetcher interface {
	Fetch(ctx context.Context, job model.JudgeJob) (string, error)
	Remove(ctx context.Context, ref *model.HarnessRef) error
}

// ResultPublisher sends verdicts back to the submit service.
type ResultPublisher interface {
	PublishResult(ctx context.Context, result model.JudgeResult) error
}

// StatusStore caches judge progress.
type StatusStore interface {
	Get(ctx context.Context, submissionID string) (model.JudgeStatus, error)
	Save(ctx context.Context, status model.JudgeStatus) error
}

// AttemptChecker tells whether an attempt was superseded.
type AttemptChecker interface {
	IsStale(ctx context.Context, submissionID string, attempt int64) (bool, error)
}

// JobLocker serializes work on one submission.
type JobLocker interface {
	TryLock(ctx context.Context, submissionID string) (string, error)
	Extend(ctx context.Context, submissionID, token string) (bool, error)
	Unlock(ctx context.Context, submissionID, token string) error
	TTL() time.Duration
}

// Config holds service dependencies and settings.
type Config struct {
	Executor      Executor
	Harness       HarnessFetcher
	Publisher     ResultPublisher
	Status        StatusStore
	Attempts      AttemptChecker
	Lock          JobLocker
	ExecRetry     dispatch.RetryPolicy
	WorkerTimeout time.Duration
	StatusTimeout time.Duration
	// LockWait bounds how long a job waits for a lock held elsewhere. Zero
	// waits one lease plus a renewal interval, enough for the lease of a
	// crashed worker to run out. Negative fails at once.
	LockWait time.Duration
}

// errLockLost reports a run whose lock expired underneath it. The job is
// redelivered and no result is published for the run.
var errLockLost = appErr.New(appErr.LockFailed).WithMessage("judge lock lost during run")

// Service handles judge jobs.
type Service struct {
	executor      Executor
	harness       HarnessFetcher
	publisher     ResultPublisher
	status        StatusStore
	attempts      AttemptChecker
	lock          JobLocker
	execRetry     dispatch.RetryPolicy
	workerTimeout time.Duration
	statusTimeout time.Duration
	lockWait      time.Duration
	now           func() time.Time
}

// NewService creates a new judge service.
func NewService(cfg Config) (*Service, error) {
	switch {
	case cfg.Executor == nil:
		return nil, fmt.Errorf("executor is required")
	case cfg.Harness == nil:
		return nil, fmt.Errorf("harness fetcher is required")
	case cfg.Publisher == nil:
		return nil, fmt.Errorf("result publisher is required")
	case cfg.Status == nil:
		return nil, fmt.Errorf("status store is required")
	case cfg.Attempts == nil:
		return nil, fmt.Errorf("attempt checker is required")
	case cfg.Lock == nil:
		return nil, fmt.Errorf("job lock is required")
	}
	lockWait := cfg.LockWait
	if lockWait == 0 {
		lockWait = cfg.Lock.TTL() + cfg.Lock.TTL()/3
	}
	return &Service{
		executor:      cfg.Executor,
		harness:       cfg.Harness,
		publisher:     cfg.Publisher,
		status:        cfg.Status,
		attempts:      cfg.Attempts,
		lock:          cfg.Lock,
		execRetry:     cfg.ExecRetry,
		workerTimeout: cfg.WorkerTimeout,
		statusTimeout: cfg.StatusTimeout,
		lockWait:      lockWait,
		now:           time.Now,
	}, nil
}

// HandleMessage processes one job message. A nil return acknowledges the
// message; stale and already finished jobs are acknowledged without a
// result. Lock contention, a lock lost mid-run and publish failures return
// an error so the job is redelivered.
func (s *Service) HandleMessage(ctx context.Context, msg *mq.Message) error {
	job, err := dispatch.DecodeJob(msg)
	if err != nil {
		logger.Warn(ctx, "drop malformed judge job", zap.Error(err))
		return err
	}
	ctx = logger.WithSubmission(ctx, job.SubmissionID, job.Attempt)

	token, err := s.acquireLock(ctx, job.SubmissionID)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.lock.Unlock(context.WithoutCancel(ctx), job.SubmissionID, token); err != nil {
			logger.Warn(ctx, "release judge lock failed", zap.Error(err))
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	lease := s.keepLock(runCtx, cancel, job.SubmissionID, token)
	defer lease.stop()

	if s.isStale(ctx, job) {
		logger.Info(ctx, "drop stale judge job", zap.Int64("attempt", job.Attempt))
		s.removeHarness(ctx, job)
		return nil
	}
	if s.finished(ctx, job) {
		logger.Info(ctx, "judge attempt already finished, redelivery acknowledged", zap.Int64("attempt", job.Attempt))
		s.removeHarness(ctx, job)
		return nil
	}

	receivedAt := s.now().Unix()
	s.saveStatus(ctx, model.JudgeStatus{
		SubmissionID: job.SubmissionID,
		Attempt:      job.Attempt,
		Verdict:      verdict.Judging,
		Progress:     model.Progress{TotalTests: len(job.Tests)},
		ReceivedAt:   receivedAt,
	})

	out, execErr := s.execute(runCtx, job)
	if errors.Is(execErr, sandbox.ErrStaleJob) {
		logger.Info(ctx, "judge attempt superseded, result discarded", zap.Int64("attempt", job.Attempt))
		s.removeHarness(ctx, job)
		return nil
	}
	if execErr != nil && ctx.Err() != nil {
		return execErr
	}
	if lease.lost() || runCtx.Err() != nil {
		logger.Warn(ctx, "judge lock lost, result discarded", zap.Int64("attempt", job.Attempt), zap.Error(execErr))
		return errLockLost
	}

	var res model.JudgeResult
	if execErr != nil {
		logger.Error(ctx, "judge failed, recording system error", zap.Int64("attempt", job.Attempt), zap.Error(execErr))
		res = model.SystemError(job, out.Tests, verdict.Truncate(execErr.Error(), verdict.MaxInfoBytes), s.now().Unix())
	} else {
		res = model.NewJudgeResult(job, out, s.now().Unix())
	}

	if s.isStale(ctx, job) {
		logger.Info(ctx, "judge attempt superseded after run, result discarded", zap.Int64("attempt", job.Attempt))
		s.removeHarness(ctx, job)
		return nil
	}
	if err := s.publisher.PublishResult(ctx, res); err != nil {
		return err
	}

	final := model.JudgeStatus{
		SubmissionID: job.SubmissionID,
		Attempt:      job.Attempt,
		Verdict:      res.Verdict,
		Score:        res.Score,
		Progress:     model.Progress{TotalTests: len(job.Tests), DoneTests: len(res.Tests)},
		ReceivedAt:   receivedAt,
		FinishedAt:   res.FinishedAt,
	}
	if execErr != nil {
		final.ErrorCode = int(appErr.GetCode(execErr))
		final.ErrorMessage = res.JudgeInfo
	}
	s.saveStatus(ctx, final)
	s.removeHarness(ctx, job)
	logger.Info(ctx, "judge finished",
		zap.Int64("attempt", job.Attempt),
		zap.String("verdict", string(res.Verdict)),
		zap.Int("score", res.Score),
	)
	return nil
}

// acquireLock takes the job lock. While another worker holds it the call
// polls until lockWait runs out, so the lease of a crashed worker expires
// before the job is given up.
func (s *Service) acquireLock(ctx context.Context, submissionID string) (string, error) {
	if s.lockWait < 0 {
		return s.lock.TryLock(ctx, submissionID)
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = min(100*time.Millisecond, max(s.lockWait/10, time.Millisecond))
	eb.MaxInterval = max(s.lock.TTL()/6, eb.InitialInterval)
	eb.MaxElapsedTime = s.lockWait

	var token string
	err := backoff.Retry(func() error {
		t, err := s.lock.TryLock(ctx, submissionID)
		if err != nil {
			if appErr.GetCode(err) == appErr.JudgeJobLocked {
				return err
			}
			return backoff.Permanent(err)
		}
		token = t
		return nil
	}, backoff.WithContext(eb, ctx))
	if err != nil {
		return "", err
	}
	return token, nil
}

// finished reports whether a terminal verdict was already recorded for the
// job's attempt, which happens when a message is redelivered after its
// result went out.
func (s *Service) finished(ctx context.Context, job model.JudgeJob) bool {
	status, err := s.status.Get(ctx, job.SubmissionID)
	if err != nil {
		return false
	}
	return status.Attempt == job.Attempt && status.Verdict.Terminal()
}

func (s *Service) removeHarness(ctx context.Context, job model.JudgeJob) {
	if job.HarnessRef == nil {
		return
	}
	if err := s.harness.Remove(context.WithoutCancel(ctx), job.HarnessRef); err != nil {
		logger.Warn(ctx, "remove harness failed", zap.String("key", job.HarnessRef.Key), zap.Error(err))
	}
}

// execute fetches the harness and runs the job, retrying infra failures.
// The partial outcome of the last try is returned with its error.
func (s *Service) execute(ctx context.Context, job model.JudgeJob) (verdict.Outcome, error) {
	if s.workerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.workerTimeout)
		defer cancel()
	}
	check := func(ctx context.Context) (bool, error) {
		return s.attempts.IsStale(ctx, job.SubmissionID, job.Attempt)
	}

	var out verdict.Outcome
	err := s.execRetry.Retry(ctx, func(ctx context.Context) error {
		source, err := s.harness.Fetch(ctx, job)
		if err != nil {
			return classifyExecError(err)
		}
		var execErr error
		out, execErr = s.executor.Execute(ctx, job, source, check)
		return classifyExecError(execErr)
	})
	return out, err
}

// classifyExecError marks errors that another try cannot fix.
func classifyExecError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sandbox.ErrStaleJob) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return dispatch.Permanent(err)
	}
	switch appErr.GetCode(err) {
	case appErr.InvalidParams, appErr.ValidationFailed, appErr.RequiredFieldEmpty,
		appErr.LanguageNotSupported, appErr.InvalidSignature, appErr.ArtifactCorrupted:
		return dispatch.Permanent(err)
	}
	return err
}

func (s *Service) isStale(ctx context.Context, job model.JudgeJob) bool {
	stale, err := s.attempts.IsStale(ctx, job.SubmissionID, job.Attempt)
	if err != nil {
		// Apply is attempt-guarded, so a missed check only costs a run.
		logger.Warn(ctx, "stale check failed", zap.Error(err))
		return false
	}
	return stale
}

// lockLease is the keepalive of one held job lock.
type lockLease struct {
	stop   func()
	isLost atomic.Bool
}

func (l *lockLease) lost() bool {
	return l.isLost.Load()
}

// keepLock extends the job lock until stopped. Losing the lock cancels the
// run so two workers never execute one submission.
func (s *Service) keepLock(ctx context.Context, cancel context.CancelFunc, submissionID, token string) *lockLease {
	lease := &lockLease{stop: func() {}}
	interval := s.lock.TTL() / 3
	if interval <= 0 {
		return lease
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				ok, err := s.lock.Extend(ctx, submissionID, token)
				if err != nil {
					logger.Warn(ctx, "extend judge lock failed", zap.Error(err))
					continue
				}
				if !ok {
					logger.Error(ctx, "judge lock lost, cancelling run")
					lease.isLost.Store(true)
					cancel()
					return
				}
			}
		}
	}()
	lease.stop = func() {
		close(done)
		wg.Wait()
	}
	return lease
}

func (s *Service) saveStatus(ctx context.Context, status model.JudgeStatus) {
	if s.statusTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.statusTimeout)
		defer cancel()
	}
	if err := s.status.Save(ctx, status); err != nil {
		logger.Warn(ctx, "save judge status failed", zap.Error(err))
	}
}
