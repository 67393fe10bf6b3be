package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCacheHelper(client, "test:"), mr
}

type cachedValue struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCacheHelper_SetAndGet(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestCache(t)

	stored := cachedValue{Name: "algebra", Count: 3}
	require.NoError(t, helper.Set(ctx, "topic:1", stored, time.Minute))

	var loaded cachedValue
	require.NoError(t, helper.Get(ctx, "topic:1", &loaded))
	assert.Equal(t, stored, loaded)
}

func TestCacheHelper_GetMiss(t *testing.T) {
	helper, _ := newTestCache(t)

	var dest cachedValue
	err := helper.Get(context.Background(), "missing", &dest)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCacheHelper_Delete(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestCache(t)

	require.NoError(t, helper.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, helper.Set(ctx, "b", 2, time.Minute))
	require.NoError(t, helper.Delete(ctx, "a", "b"))

	exists, err := helper.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCacheHelper_Expiry(t *testing.T) {
	ctx := context.Background()
	helper, mr := newTestCache(t)

	require.NoError(t, helper.Set(ctx, "short", 1, time.Second))
	mr.FastForward(2 * time.Second)

	var dest int
	err := helper.Get(ctx, "short", &dest)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCacheHelper_InvalidatePattern(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestCache(t)

	require.NoError(t, helper.Set(ctx, "quiz:1", 1, time.Minute))
	require.NoError(t, helper.Set(ctx, "quiz:2", 2, time.Minute))
	require.NoError(t, helper.Set(ctx, "other:1", 3, time.Minute))

	require.NoError(t, helper.InvalidatePattern(ctx, "quiz:*"))

	exists, err := helper.Exists(ctx, "quiz:1")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = helper.Exists(ctx, "other:1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCacheHelper_NilClientDegradesGracefully(t *testing.T) {
	ctx := context.Background()
	helper := NewCacheHelper(nil, "test:")

	assert.NoError(t, helper.Set(ctx, "key", 1, time.Minute))
	assert.NoError(t, helper.Delete(ctx, "key"))

	var dest int
	assert.ErrorIs(t, helper.Get(ctx, "key", &dest), ErrCacheNotAvailable)

	// A miss falls through to the fetch function
	err := helper.CacheOrExecute(ctx, "key", &dest, time.Minute, func() (interface{}, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, dest)
}

func TestCacheHelper_CacheOrExecute(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestCache(t)

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return cachedValue{Name: "fetched"}, nil
	}

	var first cachedValue
	require.NoError(t, helper.CacheOrExecute(ctx, "item", &first, time.Minute, fetch))
	assert.Equal(t, "fetched", first.Name)
	assert.Equal(t, 1, calls)

	// The async cache write may still be in flight
	require.Eventually(t, func() bool {
		ok, err := helper.Exists(ctx, "item")
		return err == nil && ok
	}, time.Second, 10*time.Millisecond)

	var second cachedValue
	require.NoError(t, helper.CacheOrExecute(ctx, "item", &second, time.Minute, fetch))
	assert.Equal(t, "fetched", second.Name)
	assert.Equal(t, 1, calls, "second read must come from cache")
}
