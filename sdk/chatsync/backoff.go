package chatsync

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Default poll intervals. Polling slows down after slowAfter and idleAfter
// consecutive polls that brought nothing new.
const (
	DefaultPollInterval = 3 * time.Second
	SlowPollInterval    = 5 * time.Second
	IdlePollInterval    = 10 * time.Second

	slowAfter = 3
	idleAfter = 6
)

var _ backoff.BackOff = (*PollBackoff)(nil)

// PollBackoff is the adaptive poll schedule. It implements backoff.BackOff
// and never returns backoff.Stop: polling ends only when the poller does.
type PollBackoff struct {
	mu         sync.Mutex
	base       time.Duration
	slow       time.Duration
	idle       time.Duration
	emptyPolls int
}

// NewPollBackoff creates a PollBackoff with the default 3s/5s/10s steps
func NewPollBackoff() *PollBackoff {
	return NewPollBackoffWithIntervals(DefaultPollInterval, SlowPollInterval, IdlePollInterval)
}

// NewPollBackoffWithIntervals creates a PollBackoff with custom steps
func NewPollBackoffWithIntervals(base, slow, idle time.Duration) *PollBackoff {
	return &PollBackoff{base: base, slow: slow, idle: idle}
}

// NextBackOff returns the wait before the next poll
func (b *PollBackoff) NextBackOff() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interval()
}

func (b *PollBackoff) interval() time.Duration {
	switch {
	case b.emptyPolls >= idleAfter:
		return b.idle
	case b.emptyPolls >= slowAfter:
		return b.slow
	default:
		return b.base
	}
}

// Reset goes back to the base interval
func (b *PollBackoff) Reset() {
	b.mu.Lock()
	b.emptyPolls = 0
	b.mu.Unlock()
}

// Record feeds the outcome of one poll into the schedule
func (b *PollBackoff) Record(productive bool) {
	if productive {
		b.Reset()
		return
	}
	b.mu.Lock()
	b.emptyPolls++
	b.mu.Unlock()
}

// EmptyPolls returns the number of consecutive unproductive polls
func (b *PollBackoff) EmptyPolls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.emptyPolls
}
