//go:build integration

package tracker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) *RedisStore {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping integration test")
	}

	rdb, err := DialRedis(context.Background(), addr)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, time.Minute)
}

func TestRedisStore_Tracker(t *testing.T) {
	ctx := context.Background()
	tr := New(setupRedisStore(t))
	userA, userB := uuid.New(), uuid.New()

	added, err := tr.TrackGenerateAll(ctx, userA, 10)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = tr.TrackGenerateAll(ctx, userA, 10)
	require.NoError(t, err)
	assert.False(t, added)

	_, err = tr.TrackRegenerate(ctx, userB, 77)
	require.NoError(t, err)

	a, err := tr.ActiveGenerations(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, a.GeneratingAllExperienceIDs)
	assert.Equal(t, []int64{}, a.RegeneratingTopicIDs)

	b, err := tr.ActiveGenerations(ctx, userB)
	require.NoError(t, err)
	assert.Equal(t, []int64{77}, b.RegeneratingTopicIDs)

	require.NoError(t, tr.UntrackGenerateAll(ctx, userA, 10))
	require.NoError(t, tr.UntrackRegenerate(ctx, userB, 77))
	require.NoError(t, tr.Refresh(ctx, KindGenerateAll, userA), "refreshing a missing key is not an error")

	a, err = tr.ActiveGenerations(ctx, userA)
	require.NoError(t, err)
	assert.True(t, a.Empty())
}

func TestRedisStore_TouchExtendsExpiry(t *testing.T) {
	ctx := context.Background()
	store := setupRedisStore(t)
	store.ttl = 2 * time.Second
	key := Key(KindGenerateAll, uuid.New())
	t.Cleanup(func() { _ = store.rdb.Del(context.Background(), key).Err() })

	_, err := store.Add(ctx, key, 10)
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)
	require.NoError(t, store.Touch(ctx, key))
	time.Sleep(1500 * time.Millisecond)

	members, err := store.Members(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, members, "touched key outlives its original ttl")

	ttl, err := store.rdb.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	missing := Key(KindRegenerate, uuid.New())
	require.NoError(t, store.Touch(ctx, missing))
	n, err := store.rdb.Exists(ctx, missing).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
