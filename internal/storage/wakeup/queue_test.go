package wakeup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), mr
}

func TestQueue_ClaimOnlyDue(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, q.Schedule(ctx, "run-past", now.Add(-time.Minute)))
	require.NoError(t, q.Schedule(ctx, "run-now", now))
	require.NoError(t, q.Schedule(ctx, "run-future", now.Add(time.Hour)))

	claimed, err := q.Claim(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-past", "run-now"}, claimed)

	again, err := q.Claim(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, again, "claimed runs are removed from the queue")

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestQueue_ClaimRespectsLimit(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()
	now := time.Now()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Schedule(ctx, id, now.Add(-time.Second)))
	}

	claimed, err := q.Claim(ctx, now, 2)
	require.NoError(t, err)
	assert.Len(t, claimed, 2)
}

func TestQueue_ScheduleReschedules(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()
	first := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)

	require.NoError(t, q.Schedule(ctx, "run", first))
	require.NoError(t, q.Schedule(ctx, "run", second))

	at, ok, err := q.WakeAt(ctx, "run")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, at.Equal(second))

	require.NoError(t, q.Remove(ctx, "run"))
	_, ok, err = q.WakeAt(ctx, "run")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueue_ScheduleIfAbsentKeepsExisting(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, q.Schedule(ctx, "run-1", now.Add(24*time.Hour)))
	require.NoError(t, q.ScheduleIfAbsent(ctx, "run-1", now.Add(time.Minute)))

	at, ok, err := q.WakeAt(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, at.Equal(now.Add(24*time.Hour)))

	require.NoError(t, q.ScheduleIfAbsent(ctx, "run-2", now.Add(time.Minute)))
	at, ok, err = q.WakeAt(ctx, "run-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, at.Equal(now.Add(time.Minute)))
}

func TestQueue_Lock(t *testing.T) {
	q, mr := setupQueue(t)
	ctx := context.Background()

	ok, err := q.Lock(ctx, "run", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.Lock(ctx, "run", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, q.Unlock(ctx, "run"))
	ok, err = q.Lock(ctx, "run", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = q.Lock(ctx, "run", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock expires after ttl")
}
