package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(dlq string) *SubscribeOptions {
	return &SubscribeOptions{
		MaxRetries:      2,
		RetryDelay:      time.Millisecond,
		MaxRetryDelay:   2 * time.Millisecond,
		DeadLetterTopic: dlq,
		Concurrency:     2,
	}
}

func TestMemoryQueueDeliversInKeyOrder(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	err := q.SubscribeWithOptions(context.Background(), "jobs", func(ctx context.Context, m *Message) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(m.Body))
		if len(got) == 3 {
			close(done)
		}
		return nil
	}, fastRetry(""))
	require.NoError(t, err)
	require.NoError(t, q.Start())

	for _, body := range []string{"1", "2", "3"} {
		require.NoError(t, q.Publish(context.Background(), "jobs", NewMessage("sub-1", []byte(body))))
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("messages not delivered")
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
	assert.Len(t, q.Published("jobs"), 3)
}

func TestMemoryQueueRetriesThenDeadLetters(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()

	var attempts int
	var mu sync.Mutex
	dead := make(chan *Message, 1)
	require.NoError(t, q.SubscribeWithOptions(context.Background(), "jobs", func(ctx context.Context, m *Message) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("sandbox unavailable")
	}, fastRetry("jobs-dlq")))
	require.NoError(t, q.SubscribeWithOptions(context.Background(), "jobs-dlq", func(ctx context.Context, m *Message) error {
		dead <- m
		return nil
	}, nil))
	require.NoError(t, q.Start())

	require.NoError(t, q.Publish(context.Background(), "jobs", NewMessage("sub-1", []byte("x"))))
	select {
	case m := <-dead:
		assert.Equal(t, "sandbox unavailable", m.Headers[headerLastError])
		assert.Equal(t, "jobs", m.Headers[headerSourceTopic])
	case <-time.After(time.Second):
		t.Fatal("message not dead-lettered")
	}
	mu.Lock()
	assert.Equal(t, 3, attempts, "one delivery plus two retries")
	mu.Unlock()
}

func TestMemoryQueuePermanentErrorSkipsRetries(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()

	var attempts int
	var mu sync.Mutex
	dead := make(chan struct{}, 1)
	require.NoError(t, q.SubscribeWithOptions(context.Background(), "jobs", func(ctx context.Context, m *Message) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return backoff.Permanent(errors.New("malformed job"))
	}, fastRetry("jobs-dlq")))
	require.NoError(t, q.SubscribeWithOptions(context.Background(), "jobs-dlq", func(ctx context.Context, m *Message) error {
		dead <- struct{}{}
		return nil
	}, nil))
	require.NoError(t, q.Start())

	require.NoError(t, q.Publish(context.Background(), "jobs", NewMessage("k", nil)))
	select {
	case <-dead:
	case <-time.After(time.Second):
		t.Fatal("message not dead-lettered")
	}
	mu.Lock()
	assert.Equal(t, 1, attempts)
	mu.Unlock()
}
