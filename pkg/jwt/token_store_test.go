package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStore_Revocation(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewTokenStore(rdb, 2)
	require.NotNil(t, store)

	require.NoError(t, store.StoreToken(ctx, 42, "jti-1"))
	require.NoError(t, store.StoreToken(ctx, 42, "jti-2"))
	assert.Equal(t, 2*time.Hour, mr.TTL("campuschat:token:42"))

	valid, err := store.IsTokenValid(ctx, 42, "jti-1")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = store.IsTokenValid(ctx, 42, "unknown")
	require.NoError(t, err)
	assert.False(t, valid, "tokens never issued are rejected")

	require.NoError(t, store.InvalidateToken(ctx, 42, "jti-1"))
	valid, err = store.IsTokenValid(ctx, 42, "jti-1")
	require.NoError(t, err)
	assert.False(t, valid, "logged out")

	valid, err = store.IsTokenValid(ctx, 42, "jti-2")
	require.NoError(t, err)
	assert.True(t, valid, "other sessions survive")

	require.NoError(t, store.InvalidateToken(ctx, 42, "unknown"))
	fields, err := rdb.HLen(ctx, "campuschat:token:42").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), fields, "invalidating an unknown token adds nothing")

	mr.HSet("campuschat:token:42", "jti-3", "garbage")
	_, err = store.IsTokenValid(ctx, 42, "jti-3")
	assert.Error(t, err)
}
