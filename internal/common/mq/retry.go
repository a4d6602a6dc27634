package mq

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"ojcore/pkg/utils/logger"
)

// deliver runs handler with exponential backoff between attempts. Once the
// retries are exhausted, or the handler returns a backoff.Permanent error,
// the message goes to the dead letter topic. It reports whether the message
// may be acknowledged.
func deliver(ctx context.Context, p Producer, topic string, m *Message, handler HandlerFunc, opts SubscribeOptions) bool {
	if m.MaxRetries == 0 {
		m.MaxRetries = opts.MaxRetries
	}

	var lastErr error
	op := func() error {
		err := handler(ctx, m)
		if err != nil {
			lastErr = err
			m.RetryCount++
		}
		return err
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = opts.RetryDelay
	policy.MaxInterval = opts.MaxRetryDelay
	policy.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(m.MaxRetries)), ctx)

	err := backoff.RetryNotify(op, bo, func(err error, wait time.Duration) {
		logger.Warn(ctx, "message handler failed, retrying",
			zap.String("topic", topic),
			zap.String("key", m.ID),
			zap.Int("retry", m.RetryCount),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err == nil {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	logger.Error(ctx, "message moved to dead letter topic",
		zap.String("topic", topic),
		zap.String("key", m.ID),
		zap.String("dead_letter_topic", opts.DeadLetterTopic),
		zap.Error(lastErr),
	)
	if opts.DeadLetterTopic == "" {
		return true
	}
	if lastErr != nil {
		m.SetHeader(headerLastError, lastErr.Error())
	}
	m.SetHeader(headerSourceTopic, topic)
	if pubErr := p.Publish(ctx, opts.DeadLetterTopic, m); pubErr != nil {
		logger.Error(ctx, "publish dead letter failed", zap.String("key", m.ID), zap.Error(pubErr))
		return false
	}
	return true
}
