package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ojcore/internal/common/cache"
	"ojcore/internal/judge/model"
	appErr "ojcore/pkg/errors"
)

const defaultStatusPrefix = "judge:status:"

// StatusRepository keeps the latest judge status per submission in redis.
type StatusRepository struct {
	cache  cache.BasicOps
	prefix string
	TTL    time.Duration
}

// NewStatusRepository creates a new repository. An empty prefix uses
// "judge:status:".
func NewStatusRepository(cacheClient cache.BasicOps, prefix string, ttl time.Duration) *StatusRepository {
	if prefix == "" {
		prefix = defaultStatusPrefix
	}
	return &StatusRepository{cache: cacheClient, prefix: prefix, TTL: ttl}
}

// Get returns status by submission id.
func (r *StatusRepository) Get(ctx context.Context, submissionID string) (model.JudgeStatus, error) {
	if submissionID == "" {
		return model.JudgeStatus{}, appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return model.JudgeStatus{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.Get(ctx, r.prefix+submissionID)
	if err != nil {
		return model.JudgeStatus{}, appErr.Wrapf(err, appErr.CacheError, "load status failed")
	}
	if val == "" {
		return model.JudgeStatus{}, appErr.New(appErr.NotFound).WithMessage("submission status not found")
	}
	var status model.JudgeStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return model.JudgeStatus{}, appErr.Wrapf(err, appErr.CacheError, "decode status failed")
	}
	return status, nil
}

// Save stores status unless a newer attempt is already cached.
func (r *StatusRepository) Save(ctx context.Context, status model.JudgeStatus) error {
	if status.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	if current, err := r.Get(ctx, status.SubmissionID); err == nil && current.Attempt > status.Attempt {
		return nil
	}
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status failed: %w", err)
	}
	if err := r.cache.Set(ctx, r.prefix+status.SubmissionID, string(data), cache.JitterTTL(r.TTL)); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store status failed")
	}
	return nil
}

// ReportStatus lets the repository serve as the sandbox worker's reporter.
func (r *StatusRepository) ReportStatus(ctx context.Context, status model.JudgeStatus) error {
	return r.Save(ctx, status)
}
