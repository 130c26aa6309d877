package chatsync

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Poller re-fetches one sync key on the adaptive schedule until stopped
type Poller struct {
	key     string
	backoff *PollBackoff
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	stopped bool
}

// Stop cancels the poller. It does not wait; use Done for that. Stopping
// twice is fine.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.cancel()
}

// Done is closed once the poll loop has exited
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Interval returns the wait before the next poll
func (p *Poller) Interval() time.Duration {
	return p.backoff.NextBackOff()
}

// EmptyPolls returns the number of consecutive polls that found nothing new
func (p *Poller) EmptyPolls() int {
	return p.backoff.EmptyPolls()
}

func (p *Poller) alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.stopped
}

// run polls until ctx ends or Stop is called. Liveness is checked after each
// poll, before the timer is re-armed. onExit runs before Done is closed.
func (p *Poller) run(ctx context.Context, poll func(context.Context) (bool, error), onExit func()) {
	defer close(p.done)
	defer onExit()

	timer := time.NewTimer(p.backoff.NextBackOff())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if !p.alive() {
			return
		}

		productive, err := poll(ctx)
		if !errors.Is(err, ErrInFlight) {
			p.backoff.Record(err == nil && productive)
		}

		if !p.alive() || ctx.Err() != nil {
			return
		}
		timer.Reset(p.backoff.NextBackOff())
	}
}

// StartPolling polls the conversation with peer while its view is open.
// Starting again for the same peer replaces the previous poller.
func (e *Engine) StartPolling(ctx context.Context, peer int64) *Poller {
	return e.startPoller(ctx, PeerKey(peer), func(ctx context.Context) (bool, error) {
		added, err := e.fetchMessages(ctx, peer, true)
		return added > 0, err
	})
}

// StartConversationPolling polls the conversation list while it is open
func (e *Engine) StartConversationPolling(ctx context.Context) *Poller {
	return e.startPoller(ctx, ConversationsKey, func(ctx context.Context) (bool, error) {
		return e.fetchConversations(ctx, true)
	})
}

func (e *Engine) startPoller(ctx context.Context, key string, poll func(context.Context) (bool, error)) *Poller {
	pctx, cancel := context.WithCancel(ctx)
	p := &Poller{
		key:     key,
		backoff: e.newBackoff(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	e.mu.Lock()
	if prev, ok := e.pollers[key]; ok {
		prev.Stop()
	}
	e.pollers[key] = p
	e.mu.Unlock()

	go p.run(pctx, poll, func() { e.forget(p) })
	return p
}

// forget drops p from the registry unless another poller has replaced it
func (e *Engine) forget(p *Poller) {
	e.mu.Lock()
	if e.pollers[p.key] == p {
		delete(e.pollers, p.key)
	}
	e.mu.Unlock()
}

// StopPolling stops the poller for key, if any
func (e *Engine) StopPolling(key string) {
	e.mu.Lock()
	p, ok := e.pollers[key]
	delete(e.pollers, key)
	e.mu.Unlock()
	if ok {
		p.Stop()
	}
}

// Close stops every poller
func (e *Engine) Close() {
	e.mu.Lock()
	pollers := e.pollers
	e.pollers = make(map[string]*Poller)
	e.mu.Unlock()
	for _, p := range pollers {
		p.Stop()
	}
}

// Key returns the sync key the poller refreshes
func (p *Poller) Key() string {
	return p.key
}
