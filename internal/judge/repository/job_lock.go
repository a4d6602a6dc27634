package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ojcore/internal/common/cache"
	appErr "ojcore/pkg/errors"
)

const defaultLockPrefix = "judge:lock:"

// JobLock makes sure one submission is executed by one worker at a time.
type JobLock struct {
	locks  cache.LockOps
	prefix string
	ttl    time.Duration
}

func NewJobLock(locks cache.LockOps, prefix string, ttl time.Duration) *JobLock {
	if prefix == "" {
		prefix = defaultLockPrefix
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &JobLock{locks: locks, prefix: prefix, ttl: ttl}
}

// TTL returns the lock lease duration.
func (l *JobLock) TTL() time.Duration {
	return l.ttl
}

// TryLock returns the owner token, or JudgeJobLocked when another worker
// holds the submission.
func (l *JobLock) TryLock(ctx context.Context, submissionID string) (string, error) {
	token := uuid.NewString()
	ok, err := l.locks.TryLock(ctx, l.prefix+submissionID, token, l.ttl)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.LockFailed, "acquire judge lock failed")
	}
	if !ok {
		return "", appErr.Newf(appErr.JudgeJobLocked, "submission %s is being judged", submissionID)
	}
	return token, nil
}

// Extend renews the lease. It returns false once the lock was lost.
func (l *JobLock) Extend(ctx context.Context, submissionID, token string) (bool, error) {
	ok, err := l.locks.ExtendLock(ctx, l.prefix+submissionID, token, l.ttl)
	if err != nil {
		return false, appErr.Wrapf(err, appErr.LockFailed, "extend judge lock failed")
	}
	return ok, nil
}

func (l *JobLock) Unlock(ctx context.Context, submissionID, token string) error {
	if _, err := l.locks.Unlock(ctx, l.prefix+submissionID, token); err != nil {
		return appErr.Wrapf(err, appErr.LockFailed, "release judge lock failed")
	}
	return nil
}
