// Package dispatch moves judge jobs and results over the message queue.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"ojcore/internal/common/mq"
	"ojcore/internal/judge/model"
	appErr "ojcore/pkg/errors"
	"ojcore/pkg/utils/logger"
)

// Dispatcher publishes jobs and results keyed by submission id and runs the
// consume loops for both topics.
type Dispatcher struct {
	queue mq.MessageQueue
	cfg   Config
}

// New creates a dispatcher over queue.
func New(queue mq.MessageQueue, cfg Config) *Dispatcher {
	return &Dispatcher{queue: queue, cfg: cfg.withDefaults()}
}

// Topics returns the resolved topic names.
func (d *Dispatcher) Topics() Topics {
	return d.cfg.Topics
}

// DispatchJob publishes job and returns once the broker accepted it.
func (d *Dispatcher) DispatchJob(ctx context.Context, job model.JudgeJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	return d.publish(ctx, d.cfg.Topics.Jobs, job.SubmissionID, job.Attempt, job)
}

// PublishResult publishes result on the result topic.
func (d *Dispatcher) PublishResult(ctx context.Context, result model.JudgeResult) error {
	if result.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	return d.publish(ctx, d.cfg.Topics.Results, result.SubmissionID, result.Attempt, result)
}

func (d *Dispatcher) publish(ctx context.Context, topic, key string, attempt int64, payload interface{}) error {
	if d == nil || d.queue == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("message queue is not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload failed: %w", topic, err)
	}

	err = d.cfg.Publish.Retry(ctx, func(ctx context.Context) error {
		msg := mq.NewMessage(key, body)
		msg.SetHeader(model.AttemptHeader, strconv.FormatInt(attempt, 10))
		return d.queue.Publish(ctx, topic, msg)
	})
	if err != nil {
		logger.Error(ctx, "publish failed",
			zap.String("topic", topic),
			zap.String("submission_id", key),
			zap.Int64("attempt", attempt),
			zap.Error(err),
		)
		return appErr.Wrapf(err, appErr.MQPublishFailed, "publish to %s failed", topic)
	}
	return nil
}

// ConsumeJobs registers handler on the job topic. Messages are committed
// only after handler returns nil.
func (d *Dispatcher) ConsumeJobs(ctx context.Context, handler mq.HandlerFunc) error {
	return d.consume(ctx, d.cfg.Topics.Jobs, d.cfg.Topics.JobsDLQ, d.cfg.Jobs, handler)
}

// ConsumeResults registers handler on the result topic.
func (d *Dispatcher) ConsumeResults(ctx context.Context, handler mq.HandlerFunc) error {
	return d.consume(ctx, d.cfg.Topics.Results, d.cfg.Topics.ResultsDLQ, d.cfg.Results, handler)
}

func (d *Dispatcher) consume(ctx context.Context, topic, dlq string, cc ConsumerConfig, handler mq.HandlerFunc) error {
	if d == nil || d.queue == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("message queue is not configured")
	}
	opts := &mq.SubscribeOptions{
		ConsumerGroup:   cc.Group,
		Concurrency:     cc.Concurrency,
		PrefetchCount:   cc.PrefetchCount,
		MaxRetries:      cc.MaxRetries,
		RetryDelay:      time.Duration(cc.RetryDelayMs) * time.Millisecond,
		MaxRetryDelay:   time.Duration(cc.MaxRetryDelay) * time.Millisecond,
		DeadLetterTopic: dlq,
	}
	if cc.MaxInFlight > 0 {
		opts.Limiter = mq.NewTokenLimiter(cc.MaxInFlight)
	}
	if err := d.queue.SubscribeWithOptions(ctx, topic, handler, opts); err != nil {
		return appErr.Wrapf(err, appErr.MQConsumeFailed, "subscribe %s failed", topic)
	}
	logger.Info(ctx, "consumer registered",
		zap.String("topic", topic),
		zap.String("group", cc.Group),
		zap.String("dead_letter_topic", dlq),
	)
	return nil
}
