package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/config"
)

type testStruct struct {
	Name string
	Age  int
}

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cache, err := InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestSetAndGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	expected := testStruct{Name: "Alice", Age: 30}
	require.NoError(t, cache.Set(ctx, "user:1", expected, time.Minute))

	var actual testStruct
	found, err := cache.Get(ctx, "user:1", &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected, actual)
}

func TestGetNotFound(t *testing.T) {
	cache, _ := setupTestCache(t)

	var out testStruct
	found, err := cache.Get(context.Background(), "no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	require.NoError(t, cache.Invalidate(ctx, "key"))

	var out string
	found, err := cache.Get(ctx, "key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetInvalidJSON(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Db.Set(ctx, "bad", []byte("not-json"), time.Minute).Err())

	var out testStruct
	found, err := cache.Get(ctx, "bad", &out)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestExpiration(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "temp", "v", time.Second))
	mr.FastForward(2 * time.Second)

	var out string
	found, err := cache.Get(ctx, "temp", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAcquire(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()
	key := ReminderSentKey("reminder:abc", 7)
	assert.Equal(t, "reminder:sent:reminder:abc:7", key)

	ok, err := cache.Acquire(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.Acquire(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must see the marker")

	mr.FastForward(2 * time.Hour)
	ok, err = cache.Acquire(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "marker expires after ttl")
}

func TestConfirm(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()
	key := ReminderSentKey("reminder:abc", 3)

	confirmed, err := cache.Confirmed(ctx, key)
	require.NoError(t, err)
	assert.False(t, confirmed, "missing marker")

	ok, err := cache.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	confirmed, err = cache.Confirmed(ctx, key)
	require.NoError(t, err)
	assert.False(t, confirmed, "acquired marker is not confirmed yet")

	require.NoError(t, cache.Confirm(ctx, key, 24*time.Hour))
	confirmed, err = cache.Confirmed(ctx, key)
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.Equal(t, 24*time.Hour, mr.TTL(key))
}

func TestInitServer_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := InitServer(ctx, config.RedisConnection{AddressRedis: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	assert.Error(t, err)
}
