package repository

import (
	"context"
	"strconv"
	"time"

	"ojcore/internal/common/cache"
	appErr "ojcore/pkg/errors"
)

const defaultAttemptPrefix = "judge:attempt:"

// AttemptRepository hands out monotonically increasing judge attempts per
// submission. The judge service compares a job's attempt against Latest to
// drop superseded work.
type AttemptRepository struct {
	cache  cache.BasicOps
	prefix string
	ttl    time.Duration
}

func NewAttemptRepository(cacheClient cache.BasicOps, prefix string, ttl time.Duration) *AttemptRepository {
	if prefix == "" {
		prefix = defaultAttemptPrefix
	}
	return &AttemptRepository{cache: cacheClient, prefix: prefix, ttl: ttl}
}

// Next allocates the next attempt number. floor is the highest attempt the
// submission record already knows, so a counter lost to expiry or a flush
// resumes above it.
func (r *AttemptRepository) Next(ctx context.Context, submissionID string, floor int64) (int64, error) {
	if submissionID == "" {
		return 0, appErr.ValidationError("submission_id", "required")
	}
	n, err := r.cache.IncrFrom(ctx, r.prefix+submissionID, floor, r.ttl)
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.CacheError, "allocate judge attempt failed")
	}
	return n, nil
}

// Latest returns the newest allocated attempt, or 0 when none exists.
func (r *AttemptRepository) Latest(ctx context.Context, submissionID string) (int64, error) {
	if submissionID == "" {
		return 0, appErr.ValidationError("submission_id", "required")
	}
	val, err := r.cache.Get(ctx, r.prefix+submissionID)
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.CacheError, "load judge attempt failed")
	}
	if val == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.CacheError, "decode judge attempt failed")
	}
	return n, nil
}

// IsStale reports whether attempt has been superseded.
func (r *AttemptRepository) IsStale(ctx context.Context, submissionID string, attempt int64) (bool, error) {
	latest, err := r.Latest(ctx, submissionID)
	if err != nil {
		return false, err
	}
	return latest > attempt, nil
}
