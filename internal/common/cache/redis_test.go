package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new cache failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheGetMissingKey(t *testing.T) {
	c, _ := newTestCache(t)
	val, err := c.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if val != "" {
		t.Fatalf("expected empty value, got %q", val)
	}
}

func TestRedisCacheLockOwnership(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	ok, err := c.TryLock(ctx, "judge:lock:s1", "worker-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected lock acquired, got ok=%v err=%v", ok, err)
	}
	ok, err = c.TryLock(ctx, "judge:lock:s1", "worker-b", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second lock to fail, got ok=%v err=%v", ok, err)
	}

	released, err := c.Unlock(ctx, "judge:lock:s1", "worker-b")
	if err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if released {
		t.Fatalf("expected foreign token not to release the lock")
	}

	extended, err := c.ExtendLock(ctx, "judge:lock:s1", "worker-a", 2*time.Minute)
	if err != nil || !extended {
		t.Fatalf("expected owner to extend, got ok=%v err=%v", extended, err)
	}
	if ttl := mr.TTL("judge:lock:s1"); ttl != 2*time.Minute {
		t.Fatalf("expected ttl 2m, got %v", ttl)
	}

	released, err = c.Unlock(ctx, "judge:lock:s1", "worker-a")
	if err != nil || !released {
		t.Fatalf("expected owner to release, got ok=%v err=%v", released, err)
	}
	if mr.Exists("judge:lock:s1") {
		t.Fatalf("expected lock key removed")
	}
}

func TestAsideCachesAbsence(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	aside := NewAside[string](c, time.Minute, time.Second)
	calls := 0
	load := func(context.Context) (string, error) {
		calls++
		return "", ErrAbsent
	}
	for i := 0; i < 2; i++ {
		if _, err := aside.Get(ctx, "problem:1", load); !errors.Is(err, ErrAbsent) {
			t.Fatalf("expected ErrAbsent, got %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one load, got %d", calls)
	}
	if v, _ := mr.Get("problem:1"); v != NullCacheValue {
		t.Fatalf("expected null marker, got %q", v)
	}
}

func TestAsideStoresJSONAndForgets(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	type row struct{ ID int }
	aside := NewAside[row](c, time.Minute, time.Second)
	calls := 0
	load := func(context.Context) (row, error) {
		calls++
		return row{ID: 7}, nil
	}

	got, err := aside.Get(ctx, "row:7", load)
	if err != nil || got.ID != 7 {
		t.Fatalf("unexpected result %+v err=%v", got, err)
	}
	if v, _ := mr.Get("row:7"); v != `{"ID":7}` {
		t.Fatalf("expected json payload, got %q", v)
	}
	if _, err := aside.Get(ctx, "row:7", load); err != nil || calls != 1 {
		t.Fatalf("expected cached read, calls=%d err=%v", calls, err)
	}

	aside.Forget(ctx, "row:7")
	if _, err := aside.Get(ctx, "row:7", load); err != nil || calls != 2 {
		t.Fatalf("expected reload after Forget, calls=%d err=%v", calls, err)
	}
}

func TestAsidePropagatesLoadError(t *testing.T) {
	c, mr := newTestCache(t)
	boom := errors.New("db down")
	aside := NewAside[string](c, time.Minute, time.Second)
	_, err := aside.Get(context.Background(), "problem:2", func(context.Context) (string, error) { return "", boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	if mr.Exists("problem:2") {
		t.Fatalf("load errors must not be cached")
	}
}

func TestAsideWithoutStoreLoadsEveryTime(t *testing.T) {
	aside := NewAside[int](nil, time.Minute, time.Second)
	calls := 0
	for i := 0; i < 3; i++ {
		_, _ = aside.Get(context.Background(), "k", func(context.Context) (int, error) {
			calls++
			return calls, nil
		})
	}
	if calls != 3 {
		t.Fatalf("expected 3 loads, got %d", calls)
	}
}

func TestJitterTTLBounds(t *testing.T) {
	ttl := 10 * time.Minute
	for i := 0; i < 20; i++ {
		got := JitterTTL(ttl)
		if got > ttl || got < ttl-ttl/10 {
			t.Fatalf("jittered ttl out of range: %v", got)
		}
	}
}

func TestRedisCacheIncrWindowSetsTTLOnce(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := c.IncrWindow(ctx, "submit:rate:user:9", time.Minute)
		if err != nil {
			t.Fatalf("incr window failed: %v", err)
		}
		if n != want {
			t.Fatalf("expected %d, got %d", want, n)
		}
		if want == 1 {
			mr.FastForward(40 * time.Second)
		}
	}
	if ttl := mr.TTL("submit:rate:user:9"); ttl <= 0 || ttl > 20*time.Second {
		t.Fatalf("window must not be extended by later hits, ttl=%v", ttl)
	}
	mr.FastForward(21 * time.Second)
	n, err := c.IncrWindow(ctx, "submit:rate:user:9", time.Minute)
	if err != nil {
		t.Fatalf("incr window failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected a fresh window, got %d", n)
	}
}

func TestRedisCacheIncrFromRespectsFloor(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	n, err := c.IncrFrom(ctx, "judge:attempt:s1", 0, time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("expected 1, got %d (%v)", n, err)
	}
	n, err = c.IncrFrom(ctx, "judge:attempt:s1", 5, time.Hour)
	if err != nil || n != 6 {
		t.Fatalf("expected floor to lift the counter to 6, got %d (%v)", n, err)
	}
	n, err = c.IncrFrom(ctx, "judge:attempt:s1", 2, time.Hour)
	if err != nil || n != 7 {
		t.Fatalf("expected a lower floor to be ignored, got %d (%v)", n, err)
	}
	if ttl := mr.TTL("judge:attempt:s1"); ttl <= 0 {
		t.Fatalf("expected ttl to be set, got %v", ttl)
	}
}
