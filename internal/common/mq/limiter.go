package mq

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// TokenLimiter caps messages that were fetched but not yet finished.
// Every Release must follow a successful Acquire.
type TokenLimiter struct {
	sem *semaphore.Weighted
}

var _ FetchLimiter = (*TokenLimiter)(nil)

func NewTokenLimiter(size int) *TokenLimiter {
	if size <= 0 {
		size = 1
	}
	return &TokenLimiter{sem: semaphore.NewWeighted(int64(size))}
}

// Acquire waits for a slot or for ctx to end.
func (l *TokenLimiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

func (l *TokenLimiter) Release() {
	l.sem.Release(1)
}
