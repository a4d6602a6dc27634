package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ojcore/internal/common/cache"
	"ojcore/internal/judge/model"
	"ojcore/internal/judge/verdict"
	appErr "ojcore/pkg/errors"
)

func newRedis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestAttemptRepository(t *testing.T) {
	c, mr := newRedis(t)
	repo := NewAttemptRepository(c, "", time.Hour)
	ctx := context.Background()

	latest, err := repo.Latest(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, latest)

	first, err := repo.Next(ctx, "s1", 0)
	require.NoError(t, err)
	second, err := repo.Next(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
	assert.True(t, mr.TTL("judge:attempt:s1") > 0)

	stale, err := repo.IsStale(ctx, "s1", first)
	require.NoError(t, err)
	assert.True(t, stale)
	stale, err = repo.IsStale(ctx, "s1", second)
	require.NoError(t, err)
	assert.False(t, stale)
}

func TestAttemptRepositoryResumesAboveRecordedAttempt(t *testing.T) {
	c, mr := newRedis(t)
	repo := NewAttemptRepository(c, "", time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.Next(ctx, "s1", 0)
		require.NoError(t, err)
	}
	mr.FastForward(2 * time.Hour)
	latest, err := repo.Latest(ctx, "s1")
	require.NoError(t, err)
	require.Zero(t, latest, "counter expired")

	next, err := repo.Next(ctx, "s1", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), next)

	stale, err := repo.IsStale(ctx, "s1", 3)
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestStatusRepositoryKeepsNewestAttempt(t *testing.T) {
	c, _ := newRedis(t)
	repo := NewStatusRepository(c, "", time.Minute)
	ctx := context.Background()

	_, err := repo.Get(ctx, "s1")
	assert.Equal(t, appErr.NotFound, appErr.GetCode(err))

	require.NoError(t, repo.Save(ctx, model.JudgeStatus{SubmissionID: "s1", Attempt: 2, Verdict: verdict.Judging}))
	require.NoError(t, repo.ReportStatus(ctx, model.JudgeStatus{SubmissionID: "s1", Attempt: 1, Verdict: verdict.Accepted}))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Attempt)
	assert.Equal(t, verdict.Judging, got.Verdict)
}

func TestJobLockExclusive(t *testing.T) {
	c, mr := newRedis(t)
	lock := NewJobLock(c, "", time.Minute)
	ctx := context.Background()

	token, err := lock.TryLock(ctx, "s1")
	require.NoError(t, err)

	_, err = lock.TryLock(ctx, "s1")
	assert.Equal(t, appErr.JudgeJobLocked, appErr.GetCode(err))

	mr.FastForward(30 * time.Second)
	ok, err := lock.Extend(ctx, "s1", token)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lock.Unlock(ctx, "s1", token))
	_, err = lock.TryLock(ctx, "s1")
	assert.NoError(t, err)
}
