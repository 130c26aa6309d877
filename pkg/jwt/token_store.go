package jwt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mbeoliero/campuschat/pkg/constant"
)

// Token status constants
const (
	TokenStatusNormal = 1 // Token is valid
	TokenStatusLogout = 2 // Token was logged out
)

// TokenStore tracks issued token ids in Redis so tokens can be revoked
// before they expire. A nil TokenStore accepts every token.
type TokenStore struct {
	rdb          *redis.Client
	accessExpire time.Duration
}

// NewTokenStore creates a new TokenStore, or nil when rdb is nil
func NewTokenStore(rdb *redis.Client, expireHours int) *TokenStore {
	if rdb == nil {
		return nil
	}
	return &TokenStore{
		rdb:          rdb,
		accessExpire: time.Duration(expireHours) * time.Hour,
	}
}

// tokenKey generates Redis key for a user's tokens
// Format: {prefix}token:{userId}
func (s *TokenStore) tokenKey(userId int64) string {
	return fmt.Sprintf(constant.RedisKeyToken(), userId)
}

// StoreToken records a freshly issued token id
func (s *TokenStore) StoreToken(ctx context.Context, userId int64, tokenId string) error {
	if s == nil {
		return nil
	}
	key := s.tokenKey(userId)

	// Field: token id, Value: status
	if err := s.rdb.HSet(ctx, key, tokenId, TokenStatusNormal).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	if err := s.rdb.Expire(ctx, key, s.accessExpire).Err(); err != nil {
		return fmt.Errorf("failed to set token expiration: %w", err)
	}
	return nil
}

// IsTokenValid reports whether the token id exists and has normal status
func (s *TokenStore) IsTokenValid(ctx context.Context, userId int64, tokenId string) (bool, error) {
	if s == nil {
		return true, nil
	}
	statusStr, err := s.rdb.HGet(ctx, s.tokenKey(userId), tokenId).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get token status: %w", err)
	}

	status, err := strconv.Atoi(statusStr)
	if err != nil {
		return false, fmt.Errorf("invalid token status value: %w", err)
	}
	return status == TokenStatusNormal, nil
}

// InvalidateToken marks a token as logged out
func (s *TokenStore) InvalidateToken(ctx context.Context, userId int64, tokenId string) error {
	if s == nil {
		return nil
	}
	key := s.tokenKey(userId)

	exists, err := s.rdb.HExists(ctx, key, tokenId).Result()
	if err != nil {
		return fmt.Errorf("failed to check token existence: %w", err)
	}
	if !exists {
		return nil
	}

	if err := s.rdb.HSet(ctx, key, tokenId, TokenStatusLogout).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	return nil
}
