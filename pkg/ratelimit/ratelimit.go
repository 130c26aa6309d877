package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/mbeoliero/campuschat/pkg/constant"
)

// Limiter decides whether one more request from identity fits in the window
type Limiter interface {
	Allow(ctx context.Context, identity string) (bool, error)
}

// Rule is a request budget over a window, e.g. 200 per minute
type Rule struct {
	Limit  int
	Window time.Duration
}

// LocalLimiter keeps one token bucket per identity in process memory.
// Buckets refill at Limit/Window and hold at most Limit tokens.
type LocalLimiter struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter creates a LocalLimiter for rule
func NewLocalLimiter(rule Rule) *LocalLimiter {
	idle := 2 * rule.Window
	if idle < 3*time.Minute {
		idle = 3 * time.Minute
	}
	return &LocalLimiter{
		entries: make(map[string]*localEntry),
		limit:   rate.Limit(float64(rule.Limit) / rule.Window.Seconds()),
		burst:   rule.Limit,
		idleTTL: idle,
		now:     time.Now,
	}
}

// Allow implements Limiter
func (l *LocalLimiter) Allow(_ context.Context, identity string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[identity]
	if !ok {
		entry = &localEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[identity] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1), nil
}

// Sweep drops buckets that have been idle for longer than the idle TTL
func (l *LocalLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleTTL)
	removed := 0
	for id, entry := range l.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps idle buckets every interval until ctx is done
func (l *LocalLimiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// RedisLimiter is a sliding-window log kept in one sorted set per identity,
// so the budget is shared by every server instance.
type RedisLimiter struct {
	rdb   *redis.Client
	group string
	rule  Rule
	now   func() time.Time
}

// NewRedisLimiter creates a RedisLimiter; group namespaces the keys
func NewRedisLimiter(rdb *redis.Client, group string, rule Rule) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, group: group, rule: rule, now: time.Now}
}

// Allow implements Limiter
func (l *RedisLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	key := fmt.Sprintf(constant.RedisKeyRateLimit(), l.group, identity)
	now := l.now()
	windowStart := now.Add(-l.rule.Window).UnixMicro()
	member := uuid.NewString()

	var card *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", windowStart))
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMicro()), Member: member})
		card = pipe.ZCard(ctx, key)
		pipe.PExpire(ctx, key, l.rule.Window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit window update failed: %w", err)
	}

	if card.Val() > int64(l.rule.Limit) {
		// Rejected requests do not consume budget.
		_ = l.rdb.ZRem(ctx, key, member).Err()
		return false, nil
	}
	return true, nil
}
