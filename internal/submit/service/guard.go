package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	appErr "ojcore/pkg/errors"
	"ojcore/pkg/utils/logger"
)

const (
	idempotencyKeyPrefix = "submit:idempotency:"
	rateUserKeyPrefix    = "submit:rate:user:"
	processingMarker     = "processing"
	defaultIdemTTL       = 10 * time.Minute
)

func (s *SubmitService) acquireIdempotency(ctx context.Context, key string) (bool, string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return true, "", nil
	}
	cacheKey := idempotencyKeyPrefix + key
	ctxCache := withTimeout(ctx, s.timeouts.Cache)
	defer ctxCache.cancel()

	existing, err := s.cache.Get(ctxCache.ctx, cacheKey)
	if err != nil {
		return false, "", appErr.Wrapf(err, appErr.CacheError, "read idempotency key failed")
	}
	if existing != "" && existing != processingMarker {
		return false, existing, nil
	}

	ok, err := s.cache.SetNX(ctxCache.ctx, cacheKey, processingMarker, s.idemTTL())
	if err != nil {
		return false, "", appErr.Wrapf(err, appErr.CacheError, "reserve idempotency key failed")
	}
	if ok {
		return true, "", nil
	}
	existing, err = s.cache.Get(ctxCache.ctx, cacheKey)
	if err != nil {
		return false, "", appErr.Wrapf(err, appErr.CacheError, "read idempotency key failed")
	}
	if existing != "" && existing != processingMarker {
		return false, existing, nil
	}
	return false, "", appErr.New(appErr.DuplicateSubmission).WithMessage("request is processing")
}

func (s *SubmitService) finalizeIdempotency(ctx context.Context, key, submissionID string, acquired bool) {
	key = strings.TrimSpace(key)
	if !acquired || key == "" {
		return
	}
	ctxCache := withTimeout(ctx, s.timeouts.Cache)
	defer ctxCache.cancel()
	if err := s.cache.Set(ctxCache.ctx, idempotencyKeyPrefix+key, submissionID, s.idemTTL()); err != nil {
		logger.Warn(ctx, "update idempotency key failed", zap.Error(err))
	}
}

func (s *SubmitService) releaseIdempotency(ctx context.Context, key string, acquired bool) {
	key = strings.TrimSpace(key)
	if !acquired || key == "" {
		return
	}
	ctxCache := withTimeout(ctx, s.timeouts.Cache)
	defer ctxCache.cancel()
	if err := s.cache.Del(ctxCache.ctx, idempotencyKeyPrefix+key); err != nil {
		logger.Warn(ctx, "release idempotency key failed", zap.Error(err))
	}
}

func (s *SubmitService) idemTTL() time.Duration {
	if s.idempotencyTTL > 0 {
		return s.idempotencyTTL
	}
	return defaultIdemTTL
}

func (s *SubmitService) checkRateLimit(ctx context.Context, userID int64) error {
	if s.rateLimit.Window <= 0 || s.rateLimit.UserMax <= 0 || userID <= 0 {
		return nil
	}
	ctxCache := withTimeout(ctx, s.timeouts.Cache)
	defer ctxCache.cancel()

	key := rateUserKeyPrefix + strconv.FormatInt(userID, 10)
	count, err := s.cache.IncrWindow(ctxCache.ctx, key, s.rateLimit.Window)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "rate limit check failed")
	}
	if int(count) > s.rateLimit.UserMax {
		return appErr.New(appErr.SubmitTooFrequently).WithMessage("submit too frequently")
	}
	return nil
}
