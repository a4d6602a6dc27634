package sandbox

import (
	"context"
	"sync"
	"sync/atomic"

	"ojcore/internal/judge/sandbox/observer"
	appErr "ojcore/pkg/errors"
)

// Pool bounds the number of sandboxes running at once.
type Pool struct {
	slots   chan struct{}
	inUse   atomic.Int64
	metrics observer.MetricsRecorder
}

// Lease is one acquired slot. Release is safe to call more than once.
type Lease struct {
	pool *Pool
	once sync.Once
}

// NewPool creates a pool with size slots; size below one means one.
func NewPool(size int, metrics observer.MetricsRecorder) *Pool {
	if size < 1 {
		size = 1
	}
	if metrics == nil {
		metrics = observer.NoopMetricsRecorder{}
	}
	return &Pool{slots: make(chan struct{}, size), metrics: metrics}
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return cap(p.slots)
}

// InUse returns the number of leased slots.
func (p *Pool) InUse() int {
	return int(p.inUse.Load())
}

// Acquire blocks until a slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	select {
	case p.slots <- struct{}{}:
		return p.lease(), nil
	case <-ctx.Done():
		return nil, appErr.Wrapf(ctx.Err(), appErr.JudgeQueueFull, "sandbox pool is full")
	}
}

func (p *Pool) lease() *Lease {
	p.metrics.SlotsInUse(int(p.inUse.Add(1)))
	return &Lease{pool: p}
}

// Release returns the slot to the pool.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		<-l.pool.slots
		l.pool.metrics.SlotsInUse(int(l.pool.inUse.Add(-1)))
	})
}
