// Package cache provides the redis-backed key/value and lock primitives used by
// the judging pipeline.
package cache

import (
	"context"
	"time"
)

// Cache combines the basic key/value operations with distributed locks.
type Cache interface {
	BasicOps
	LockOps
	Ping(ctx context.Context) error
	Close() error
}

// BasicOps defines string key operations.
type BasicOps interface {
	// Get returns "" with a nil error when the key does not exist.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	// IncrWindow increments a counter and starts its ttl on the first hit.
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// IncrFrom raises the counter to at least floor, increments it and
	// refreshes its ttl.
	IncrFrom(ctx context.Context, key string, floor int64, ttl time.Duration) (int64, error)
}

// LockOps defines owner-aware distributed lock operations.
// A lock is only released or extended by the holder of its token.
type LockOps interface {
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, token string) (bool, error)
	ExtendLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
}
