package sandbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ojcore/internal/judge/sandbox"
	appErr "ojcore/pkg/errors"
)

func TestPoolReleaseIsIdempotent(t *testing.T) {
	pool := sandbox.NewPool(1, nil)
	lease, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pool.InUse())

	lease.Release()
	lease.Release()
	assert.Equal(t, 0, pool.InUse())

	second, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	_, err = pool.Acquire(expired(t))
	assert.Error(t, err, "a double release must not free an extra slot")
	second.Release()
}

func expired(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	t.Cleanup(cancel)
	return ctx
}

func TestPoolAcquireHonorsContext(t *testing.T) {
	pool := sandbox.NewPool(1, nil)
	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	_, err = pool.Acquire(expired(t))
	assert.Equal(t, appErr.JudgeQueueFull, appErr.GetCode(err))
}

func TestPoolSlotReturnsAfterPanic(t *testing.T) {
	pool := sandbox.NewPool(1, nil)
	func() {
		defer func() { _ = recover() }()
		lease, err := pool.Acquire(context.Background())
		require.NoError(t, err)
		defer lease.Release()
		panic("sandbox crashed")
	}()

	lease, err := pool.Acquire(expired(t))
	require.NoError(t, err)
	lease.Release()
	assert.Equal(t, 1, pool.Size())
}
