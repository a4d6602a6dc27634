package cache

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"time"

	"golang.org/x/sync/singleflight"
)

// NullCacheValue marks a key whose backing row is known to be absent.
const NullCacheValue = "$NULL$"

// ErrAbsent is returned by loaders (and then by Aside.Get) when the backing
// row does not exist. Aside remembers the absence for EmptyTTL.
var ErrAbsent = errors.New("cache: value absent")

// Aside is a JSON cache-aside in front of a loader. Concurrent misses on one
// key share a single load. Cache failures fall through to the loader and
// never fail the call.
type Aside[T any] struct {
	store    BasicOps
	ttl      time.Duration
	emptyTTL time.Duration
	group    singleflight.Group
}

// NewAside returns a cache-aside over store. A nil store disables caching.
func NewAside[T any](store BasicOps, ttl, emptyTTL time.Duration) *Aside[T] {
	return &Aside[T]{store: store, ttl: ttl, emptyTTL: emptyTTL}
}

func (a *Aside[T]) Get(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if a.store == nil {
		return load(ctx)
	}
	if raw, err := a.store.Get(ctx, key); err == nil && raw != "" {
		if raw == NullCacheValue {
			return zero, ErrAbsent
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v, nil
		}
	}

	v, err, _ := a.group.Do(key, func() (interface{}, error) {
		v, err := load(ctx)
		switch {
		case errors.Is(err, ErrAbsent):
			_ = a.store.Set(ctx, key, NullCacheValue, JitterTTL(a.emptyTTL))
			return nil, ErrAbsent
		case err != nil:
			return nil, err
		}
		if data, err := json.Marshal(v); err == nil {
			_ = a.store.Set(ctx, key, string(data), JitterTTL(a.ttl))
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Forget drops key so the next Get reloads it.
func (a *Aside[T]) Forget(ctx context.Context, key string) {
	if a.store != nil {
		_ = a.store.Del(ctx, key)
	}
}

// JitterTTL shortens ttl by up to 10% so hot keys do not expire together.
func JitterTTL(ttl time.Duration) time.Duration {
	maxJitter := int64(ttl / 10)
	if maxJitter <= 0 {
		return ttl
	}
	n, err := rand.Int(rand.Reader, big.NewInt(maxJitter+1))
	if err != nil {
		return ttl
	}
	return ttl - time.Duration(n.Int64())
}
