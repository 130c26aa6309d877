package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(rule Rule) (*LocalLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLocalLimiter(rule)
	l.now = clock.Now
	return l, clock
}

func TestLocalLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLimiter(Rule{Limit: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, _ := l.Allow(ctx, "user:1")
	assert.False(t, ok, "budget exhausted")

	ok, _ = l.Allow(ctx, "user:2")
	assert.True(t, ok, "identities are independent")

	clock.Advance(21 * time.Second)
	ok, _ = l.Allow(ctx, "user:1")
	assert.True(t, ok, "one token refills every window/limit")
	ok, _ = l.Allow(ctx, "user:1")
	assert.False(t, ok)

	clock.Advance(time.Minute)
	for i := 0; i < 3; i++ {
		ok, _ = l.Allow(ctx, "user:1")
		assert.True(t, ok)
	}
}

func TestLocalLimiter_Sweep(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLimiter(Rule{Limit: 10, Window: time.Minute})

	_, _ = l.Allow(ctx, "a")
	clock.Advance(2 * time.Minute)
	_, _ = l.Allow(ctx, "b")

	assert.Zero(t, l.Sweep(), "nothing idle long enough yet")
	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, l.Sweep())
	clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, l.Sweep())
}

func TestLocalLimiter_RunSweeperStops(t *testing.T) {
	l := NewLocalLimiter(Rule{Limit: 1, Window: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
