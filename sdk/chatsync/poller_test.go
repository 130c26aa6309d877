package chatsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollBackoff(t *testing.T) {
	b := NewPollBackoff()
	assert.Equal(t, 3*time.Second, b.NextBackOff())

	for i := 0; i < 3; i++ {
		b.Record(false)
	}
	assert.Equal(t, 3, b.EmptyPolls())
	assert.Equal(t, 5*time.Second, b.NextBackOff())

	b.Record(true)
	assert.Zero(t, b.EmptyPolls())
	assert.Equal(t, 3*time.Second, b.NextBackOff())

	for i := 0; i < 6; i++ {
		b.Record(false)
	}
	assert.Equal(t, 10*time.Second, b.NextBackOff())
	for i := 0; i < 10; i++ {
		b.Record(false)
	}
	assert.Equal(t, 10*time.Second, b.NextBackOff(), "10s is the ceiling")

	b.Reset()
	assert.Equal(t, 3*time.Second, b.NextBackOff())
}

func TestPoller_FetchesAndMerges(t *testing.T) {
	api := newFakeAPI(viewer)
	api.receive(peer, "first")
	e := newTestEngine(t, api, WithPollIntervals(5*time.Millisecond, 10*time.Millisecond, 20*time.Millisecond))

	p := e.StartPolling(context.Background(), peer)
	assert.Equal(t, PeerKey(peer), p.Key())

	require.Eventually(t, func() bool { return len(e.Messages(peer)) == 1 }, time.Second, time.Millisecond)

	api.receive(peer, "second")
	require.Eventually(t, func() bool { return len(e.Messages(peer)) == 2 }, time.Second, time.Millisecond)

	require.Eventually(t, func() bool { return p.EmptyPolls() >= 3 }, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, p.Interval(), 10*time.Millisecond)

	p.Stop()
	<-p.Done()
}

func TestPoller_DoesNotRearmAfterStop(t *testing.T) {
	api := newFakeAPI(viewer)
	e := newTestEngine(t, api, WithPollIntervals(2*time.Millisecond, 2*time.Millisecond, 2*time.Millisecond))

	p := e.StartPolling(context.Background(), peer)
	require.Eventually(t, func() bool { return api.callCount("history") >= 2 }, time.Second, time.Millisecond)

	p.Stop()
	p.Stop()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("poll loop did not exit")
	}

	calls := api.callCount("history")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, api.callCount("history"))
}

func TestPoller_SwallowsErrors(t *testing.T) {
	api := newFakeAPI(viewer)
	api.failWith(errors.New("offline"), false)
	e := newTestEngine(t, api, WithPollIntervals(2*time.Millisecond, 2*time.Millisecond, 2*time.Millisecond))

	p := e.StartConversationPolling(context.Background())
	require.Eventually(t, func() bool { return api.callCount("conversations") >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, StatusError, e.State().Status(ConversationsKey))

	api.failWith(nil, false)
	require.Eventually(t, func() bool { return e.State().Status(ConversationsKey) == StatusSuccess }, time.Second, time.Millisecond)

	e.Close()
	<-p.Done()
}

func TestEngine_StartPollingReplaces(t *testing.T) {
	api := newFakeAPI(viewer)
	e := newTestEngine(t, api)

	first := e.StartPolling(context.Background(), peer)
	second := e.StartPolling(context.Background(), peer)

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("replaced poller still running")
	}

	e.StopPolling(PeerKey(peer))
	<-second.Done()
}

func TestPoller_StopsWithContext(t *testing.T) {
	api := newFakeAPI(viewer)
	e := newTestEngine(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	p := e.StartConversationPolling(ctx)
	cancel()

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("poller ignored context cancellation")
	}
}

func registered(e *Engine, key string) (*Poller, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pollers[key]
	return p, ok
}

func TestPoller_ForgottenWhenParentEnds(t *testing.T) {
	api := newFakeAPI(viewer)
	e := newTestEngine(t, api, WithPollIntervals(5*time.Millisecond, 10*time.Millisecond, 20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	p := e.StartPolling(ctx, peer)
	_, ok := registered(e, PeerKey(peer))
	require.True(t, ok)

	cancel()
	<-p.Done()
	_, ok = registered(e, PeerKey(peer))
	assert.False(t, ok)
}

func TestPoller_ReplacedPollerKeepsSuccessor(t *testing.T) {
	api := newFakeAPI(viewer)
	e := newTestEngine(t, api, WithPollIntervals(5*time.Millisecond, 10*time.Millisecond, 20*time.Millisecond))

	first := e.StartConversationPolling(context.Background())
	second := e.StartConversationPolling(context.Background())
	<-first.Done()

	current, ok := registered(e, ConversationsKey)
	require.True(t, ok)
	assert.Same(t, second, current)

	second.Stop()
	<-second.Done()
	_, ok = registered(e, ConversationsKey)
	assert.False(t, ok)
}
