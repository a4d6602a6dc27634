package mq

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryQueue is an in-process MessageQueue for single-node deployments and
// tests. It keeps the per-key ordering, retry and dead letter behavior of
// KafkaQueue but nothing survives a restart.
type MemoryQueue struct {
	mu        sync.Mutex
	subs      map[string][]*memorySubscription
	published map[string][]*Message
	started   bool
	closed    bool
}

var _ MessageQueue = (*MemoryQueue)(nil)

type memorySubscription struct {
	topic   string
	handler HandlerFunc
	opts    SubscribeOptions
	baseCtx context.Context

	lanes  []chan *Message
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMemoryQueue creates an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		subs:      make(map[string][]*memorySubscription),
		published: make(map[string][]*Message),
	}
}

// Publish records the message and hands a copy to every subscription.
func (q *MemoryQueue) Publish(ctx context.Context, topic string, message *Message) error {
	if message == nil {
		return errors.New("message is nil")
	}
	if topic == "" {
		return errors.New("topic is required")
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errors.New("message queue is closed")
	}
	q.published[topic] = append(q.published[topic], cloneMessage(message))
	subs := append([]*memorySubscription(nil), q.subs[topic]...)
	q.mu.Unlock()

	for _, sub := range subs {
		lane := sub.lanes[laneIndex([]byte(message.ID), len(sub.lanes))]
		select {
		case lane <- cloneMessage(message):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Published returns the messages published to topic so far.
func (q *MemoryQueue) Published(topic string) []*Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Message, 0, len(q.published[topic]))
	for _, m := range q.published[topic] {
		out = append(out, cloneMessage(m))
	}
	return out
}

func (q *MemoryQueue) SubscribeWithOptions(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error {
	if topic == "" {
		return errors.New("topic is required")
	}
	if handler == nil {
		return errors.New("handler is required")
	}
	var options SubscribeOptions
	if opts != nil {
		options = *opts
	}
	options.SetDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	sub := &memorySubscription{topic: topic, handler: handler, opts: options, baseCtx: ctx}
	sub.lanes = make([]chan *Message, options.Concurrency)
	for i := range sub.lanes {
		// Lanes buffer generously so Publish rarely blocks on a busy handler.
		sub.lanes[i] = make(chan *Message, options.PrefetchCount+1024)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.New("message queue is closed")
	}
	q.subs[topic] = append(q.subs[topic], sub)
	if q.started {
		q.startSubscription(sub)
	}
	return nil
}

func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.New("message queue is closed")
	}
	if q.started {
		return nil
	}
	for _, subs := range q.subs {
		for _, sub := range subs {
			q.startSubscription(sub)
		}
	}
	q.started = true
	return nil
}

func (q *MemoryQueue) startSubscription(sub *memorySubscription) {
	sub.ctx, sub.cancel = context.WithCancel(sub.baseCtx)
	for _, lane := range sub.lanes {
		sub.wg.Add(1)
		go func(lane <-chan *Message) {
			defer sub.wg.Done()
			for {
				select {
				case <-sub.ctx.Done():
					return
				case m := <-lane:
					q.handle(sub, m)
				}
			}
		}(lane)
	}
}

func (q *MemoryQueue) handle(sub *memorySubscription, m *Message) {
	if sub.opts.Limiter != nil {
		if err := sub.opts.Limiter.Acquire(sub.ctx); err != nil {
			return
		}
		defer sub.opts.Limiter.Release()
	}
	deliver(sub.ctx, q, sub.topic, m, sub.handler, sub.opts)
}

// Stop cancels the consumers and waits for in-flight handlers.
func (q *MemoryQueue) Stop() error {
	q.mu.Lock()
	var subs []*memorySubscription
	for _, list := range q.subs {
		subs = append(subs, list...)
	}
	q.started = false
	q.mu.Unlock()

	for _, sub := range subs {
		if sub.cancel != nil {
			sub.cancel()
		}
	}
	for _, sub := range subs {
		sub.wg.Wait()
	}
	return nil
}

func (q *MemoryQueue) Ping(ctx context.Context) error {
	return nil
}

func (q *MemoryQueue) Close() error {
	_ = q.Stop()
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func cloneMessage(m *Message) *Message {
	out := *m
	out.Body = append([]byte(nil), m.Body...)
	out.Headers = make(map[string]string, len(m.Headers))
	for k, v := range m.Headers {
		out.Headers[k] = v
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now()
	}
	return &out
}
