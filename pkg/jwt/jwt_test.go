package jwt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/campuschat/pkg/errcode"
)

func TestGenerateAndParse(t *testing.T) {
	token, claims, err := GenerateToken(42, "alice", "secret", 1)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	parsed, err := ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(42), parsed.UserId)
	assert.Equal(t, "alice", parsed.Username)
	assert.Equal(t, claims.ID, parsed.ID)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := ParseToken(token, "other")
		assert.ErrorIs(t, err, errcode.ErrTokenInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		expired, _, err := GenerateToken(42, "alice", "secret", -1)
		require.NoError(t, err)
		_, err = ParseToken(expired, "secret")
		assert.ErrorIs(t, err, errcode.ErrTokenExpired)
	})

	t.Run("unique token ids", func(t *testing.T) {
		_, other, err := GenerateToken(42, "alice", "secret", 1)
		require.NoError(t, err)
		assert.NotEqual(t, claims.ID, other.ID)
	})
}

func TestNilTokenStore(t *testing.T) {
	ctx := context.Background()
	store := NewTokenStore(nil, 1)
	assert.Nil(t, store)

	require.NoError(t, store.StoreToken(ctx, 1, "jti"))
	valid, err := store.IsTokenValid(ctx, 1, "jti")
	require.NoError(t, err)
	assert.True(t, valid)
	assert.NoError(t, store.InvalidateToken(ctx, 1, "jti"))
}
