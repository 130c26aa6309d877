package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/campuschat/internal/repository"
	"github.com/mbeoliero/campuschat/internal/testutil"
)

func TestUnreadCache_Redis(t *testing.T) {
	ctx := context.Background()
	rdb, mr := testutil.NewRedis(t)
	cache := repository.NewUnreadCache(rdb, 30*time.Second)

	_, ok, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok, "empty cache misses")

	version, err := cache.Version(ctx, 7)
	require.NoError(t, err)
	stored, err := cache.Set(ctx, 7, 3, version)
	require.NoError(t, err)
	assert.True(t, stored)

	n, ok, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, 30*time.Second, mr.TTL("campuschat:chat:unread:7"))

	require.NoError(t, cache.Invalidate(ctx, 7, 8))
	_, ok, err = cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok, "invalidate drops the count")

	mr.FastForward(31 * time.Second)
	next, err := cache.Version(ctx, 7)
	require.NoError(t, err)
	assert.Greater(t, next, version, "version outlives the cached count")
}

func TestUnreadCache_SetAfterInvalidate(t *testing.T) {
	ctx := context.Background()
	rdb, _ := testutil.NewRedis(t)
	cache := repository.NewUnreadCache(rdb, time.Minute)

	// A reader takes the version and counts; a writer invalidates before
	// the reader stores its now stale count.
	version, err := cache.Version(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, 7))

	stored, err := cache.Set(ctx, 7, 0, version)
	require.NoError(t, err)
	assert.False(t, stored)

	_, ok, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	current, err := cache.Version(ctx, 7)
	require.NoError(t, err)
	stored, err = cache.Set(ctx, 7, 1, current)
	require.NoError(t, err)
	assert.True(t, stored)
}
