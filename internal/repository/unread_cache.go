package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mbeoliero/campuschat/pkg/constant"
)

// versionTTL keeps a user's invalidation counter alive well past any count
// query that could have read it.
const versionTTL = 24 * time.Hour

// UnreadCache caches each user's global unread badge in Redis. All methods
// are no-ops on a cache built without a Redis client.
//
// Every Invalidate bumps a per-user version. A reader takes the version
// before counting and passes it to Set, which only writes while the version
// is unchanged, so a count taken before a send or mark-read can never be
// cached after that change was invalidated.
type UnreadCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewUnreadCache creates a new UnreadCache
func NewUnreadCache(rdb *redis.Client, ttl time.Duration) *UnreadCache {
	return &UnreadCache{rdb: rdb, ttl: ttl}
}

func (c *UnreadCache) key(userId int64) string {
	return fmt.Sprintf(constant.RedisKeyUnreadCount(), userId)
}

func (c *UnreadCache) versionKey(userId int64) string {
	return fmt.Sprintf(constant.RedisKeyUnreadVer(), userId)
}

// Get returns the cached count and whether it was present
func (c *UnreadCache) Get(ctx context.Context, userId int64) (int64, bool, error) {
	if c.rdb == nil {
		return 0, false, nil
	}
	n, err := c.rdb.Get(ctx, c.key(userId)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// Version returns the user's invalidation counter. Take it before computing
// the count that will be passed to Set.
func (c *UnreadCache) Version(ctx context.Context, userId int64) (int64, error) {
	if c.rdb == nil {
		return 0, nil
	}
	return readVersion(ctx, c.rdb, c.versionKey(userId))
}

// Set stores count if no invalidation happened since version was read. It
// reports whether the value was written.
func (c *UnreadCache) Set(ctx context.Context, userId, count, version int64) (bool, error) {
	if c.rdb == nil {
		return false, nil
	}
	verKey := c.versionKey(userId)
	stored := false
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readVersion(ctx, tx, verKey)
		if err != nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(userId), count, c.ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, verKey)
	if errors.Is(err, redis.TxFailedErr) {
		// The version moved between WATCH and EXEC.
		return false, nil
	}
	return stored, err
}

// Invalidate drops the cached counts of the given users and bumps their versions
func (c *UnreadCache) Invalidate(ctx context.Context, userIds ...int64) error {
	if c.rdb == nil || len(userIds) == 0 {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIds {
			verKey := c.versionKey(id)
			pipe.Incr(ctx, verKey)
			pipe.Expire(ctx, verKey, versionTTL)
			pipe.Del(ctx, c.key(id))
		}
		return nil
	})
	return err
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readVersion(ctx context.Context, cmd getter, key string) (int64, error) {
	v, err := cmd.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}
