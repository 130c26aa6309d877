// Package chatsync keeps a client's view of its chats in step with the
// server: TTL caches, adaptive polling and idempotent merging of new
// messages on top of the sdk HTTP client.
package chatsync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/campuschat/sdk"
)

// Defaults for Engine options
const (
	DefaultMessageTTL       = 30 * time.Second
	DefaultConversationTTL  = 60 * time.Second
	DefaultPageSize         = 50
	DefaultConversationPage = 20
	DefaultCacheSize        = 64
)

var (
	// ErrInFlight is returned to pollers when a fetch for the same key is
	// outstanding. The request is dropped, not queued. User-initiated loads
	// get the cached data instead.
	ErrInFlight = errors.New("chatsync: request already in flight")
	// ErrTooManyRequests is returned to user-initiated calls the server rate limited
	ErrTooManyRequests = errors.New("chatsync: too many requests, please try again later")
	// ErrUnauthorized is returned when the session is no longer valid
	ErrUnauthorized = errors.New("chatsync: session expired, please log in again")
	// ErrEmptyMessage is returned by Send for blank messages
	ErrEmptyMessage = errors.New("chatsync: message is empty")
)

const (
	noticeTooManyRequests = "Too many requests. Please wait a moment and try again."
	noticeUnauthorized    = "Your session has expired. Please log in again."
)

// API is the part of the sdk client the engine drives
type API interface {
	SendMessage(ctx context.Context, receiverId int64, text string) (*sdk.Message, error)
	GetHistory(ctx context.Context, peerId int64, page, limit int) (*sdk.HistoryPage, error)
	GetConversations(ctx context.Context, page, limit int) (*sdk.ConversationPage, error)
}

var _ API = (*sdk.Client)(nil)

type peerEntry struct {
	messages []*sdk.Message
	cachedAt time.Time
	page     int // highest history page loaded
	hasMore  bool
}

type conversationEntry struct {
	conversations []*sdk.Conversation
	cachedAt      time.Time
	lastMessageId int64
}

// Engine syncs one viewer's conversations. It is safe for concurrent use.
type Engine struct {
	api    API
	viewer int64
	state  *SyncState
	now    func() time.Time

	messageTTL      time.Duration
	conversationTTL time.Duration
	pageSize        int
	cacheSize       int
	newBackoff      func() *PollBackoff

	mu            sync.Mutex
	peers         *lru.Cache[int64, *peerEntry]
	conversations *conversationEntry
	inFlight      map[string]bool
	pollers       map[string]*Poller
}

// Option configures an Engine
type Option func(*Engine)

// WithSyncState shares a SyncState with other components
func WithSyncState(s *SyncState) Option {
	return func(e *Engine) { e.state = s }
}

// WithClock replaces time.Now for TTL checks
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMessageTTL sets how long a peer's messages are served from cache
func WithMessageTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.messageTTL = ttl }
}

// WithConversationTTL sets how long the conversation list is served from cache
func WithConversationTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.conversationTTL = ttl }
}

// WithPageSize sets the history page size
func WithPageSize(n int) Option {
	return func(e *Engine) { e.pageSize = n }
}

// WithCacheSize caps how many peers' messages are kept
func WithCacheSize(n int) Option {
	return func(e *Engine) { e.cacheSize = n }
}

// WithPollIntervals overrides the 3s/5s/10s poll steps
func WithPollIntervals(base, slow, idle time.Duration) Option {
	return func(e *Engine) {
		e.newBackoff = func() *PollBackoff { return NewPollBackoffWithIntervals(base, slow, idle) }
	}
}

// New creates an Engine for viewer on top of api
func New(api API, viewer int64, opts ...Option) (*Engine, error) {
	e := &Engine{
		api:             api,
		viewer:          viewer,
		now:             time.Now,
		messageTTL:      DefaultMessageTTL,
		conversationTTL: DefaultConversationTTL,
		pageSize:        DefaultPageSize,
		cacheSize:       DefaultCacheSize,
		newBackoff:      NewPollBackoff,
		inFlight:        make(map[string]bool),
		pollers:         make(map[string]*Poller),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.state == nil {
		e.state = NewSyncState()
	}

	peers, err := lru.New[int64, *peerEntry](e.cacheSize)
	if err != nil {
		return nil, err
	}
	e.peers = peers
	return e, nil
}

// State returns the SyncState the engine reports to
func (e *Engine) State() *SyncState {
	return e.state
}

// Viewer returns the user the engine syncs for
func (e *Engine) Viewer() int64 {
	return e.viewer
}

// acquire sets the in-flight flag for key. It fails if the flag is already set.
func (e *Engine) acquire(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[key] {
		return false
	}
	e.inFlight[key] = true
	return true
}

func (e *Engine) release(key string) {
	e.mu.Lock()
	delete(e.inFlight, key)
	e.mu.Unlock()
}

// Messages returns the cached messages with peer, oldest first
func (e *Engine) Messages(peer int64) []*sdk.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.peers.Peek(peer)
	if !ok {
		return nil
	}
	return cloneMessages(entry.messages)
}

// Bubbles returns the cached messages with peer bound to the viewer
func (e *Engine) Bubbles(peer int64) []Bubble {
	return BindAll(e.Messages(peer), e.viewer)
}

// Conversations returns the cached conversation list
func (e *Engine) Conversations() []*sdk.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conversations == nil {
		return nil
	}
	return append([]*sdk.Conversation(nil), e.conversations.conversations...)
}

// HasOlder reports whether older history may exist beyond what is loaded
func (e *Engine) HasOlder(peer int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.peers.Peek(peer)
	return ok && entry.hasMore
}

// Invalidate makes the next LoadMessages for peer go to the network
func (e *Engine) Invalidate(peer int64) {
	e.mu.Lock()
	if entry, ok := e.peers.Peek(peer); ok {
		entry.cachedAt = time.Time{}
	}
	e.mu.Unlock()
}

// InvalidateConversations makes the next LoadConversations go to the network
func (e *Engine) InvalidateConversations() {
	e.mu.Lock()
	if e.conversations != nil {
		e.conversations.cachedAt = time.Time{}
	}
	e.mu.Unlock()
}

// LoadMessages returns the latest messages with peer. A fresh cache entry is
// served without a request unless force is set. New messages are merged into
// what is already loaded.
func (e *Engine) LoadMessages(ctx context.Context, peer int64, force bool) ([]*sdk.Message, error) {
	if !force {
		e.mu.Lock()
		entry, ok := e.peers.Get(peer)
		if ok && e.fresh(entry.cachedAt, e.messageTTL) {
			msgs := cloneMessages(entry.messages)
			e.mu.Unlock()
			return msgs, nil
		}
		e.mu.Unlock()
	}

	if _, err := e.fetchMessages(ctx, peer, false); err != nil && !errors.Is(err, ErrInFlight) {
		return nil, err
	}
	return e.Messages(peer), nil
}

// fetchMessages loads the newest history page and merges it, returning how
// many messages were new.
func (e *Engine) fetchMessages(ctx context.Context, peer int64, background bool) (int, error) {
	key := PeerKey(peer)
	if !e.acquire(key) {
		return 0, ErrInFlight
	}
	defer e.release(key)

	e.state.set(key, StatusLoading, nil)
	page, err := e.api.GetHistory(ctx, peer, 1, e.pageSize)
	if err != nil {
		return 0, e.fail(ctx, key, err, background)
	}

	e.mu.Lock()
	entry, ok := e.peers.Get(peer)
	if !ok {
		entry = &peerEntry{page: 1}
		e.peers.Add(peer, entry)
	}
	if e.skipsAhead(entry.messages, page.Messages) {
		// Too much arrived to join the newest page onto what is loaded.
		// Start over from it; LoadOlder pages back through the rest.
		entry.messages, entry.page = nil, 1
	}
	var added int
	entry.messages, added = mergeNewer(entry.messages, page.Messages)
	entry.hasMore = olderRemain(len(entry.messages), page.Pagination)
	entry.cachedAt = e.now()
	e.mu.Unlock()

	if added > 0 {
		// The list's previews and unread counts moved with these messages.
		e.InvalidateConversations()
	}
	e.state.set(key, StatusSuccess, nil)
	return added, nil
}

// LoadOlder loads the next page of older history and prepends it. If the
// request fails the page is not counted as loaded, so the next call retries it.
func (e *Engine) LoadOlder(ctx context.Context, peer int64) ([]*sdk.Message, error) {
	key := PeerKey(peer)

	e.mu.Lock()
	entry, ok := e.peers.Peek(peer)
	e.mu.Unlock()
	if !ok {
		return e.LoadMessages(ctx, peer, true)
	}

	if !e.acquire(key) {
		return e.Messages(peer), nil
	}
	defer e.release(key)

	e.mu.Lock()
	if !entry.hasMore {
		msgs := cloneMessages(entry.messages)
		e.mu.Unlock()
		return msgs, nil
	}
	entry.page++
	nextPage := entry.page
	e.mu.Unlock()

	e.state.set(key, StatusLoading, nil)
	page, err := e.api.GetHistory(ctx, peer, nextPage, e.pageSize)
	if err != nil {
		e.mu.Lock()
		if entry.page == nextPage {
			entry.page--
		}
		e.mu.Unlock()
		return nil, e.fail(ctx, key, err, false)
	}

	e.mu.Lock()
	entry.messages, _ = prependOlder(entry.messages, page.Messages)
	entry.hasMore = olderRemain(len(entry.messages), page.Pagination)
	msgs := cloneMessages(entry.messages)
	e.mu.Unlock()

	e.state.set(key, StatusSuccess, nil)
	return msgs, nil
}

// LoadConversations returns the conversation list, from cache while fresh
// unless force is set.
func (e *Engine) LoadConversations(ctx context.Context, force bool) ([]*sdk.Conversation, error) {
	if !force {
		e.mu.Lock()
		if e.conversations != nil && e.fresh(e.conversations.cachedAt, e.conversationTTL) {
			convs := append([]*sdk.Conversation(nil), e.conversations.conversations...)
			e.mu.Unlock()
			return convs, nil
		}
		e.mu.Unlock()
	}

	if _, err := e.fetchConversations(ctx, false); err != nil && !errors.Is(err, ErrInFlight) {
		return nil, err
	}
	return e.Conversations(), nil
}

// fetchConversations reloads the first page of the list and reports whether
// any conversation has a message the engine had not seen.
func (e *Engine) fetchConversations(ctx context.Context, background bool) (bool, error) {
	if !e.acquire(ConversationsKey) {
		return false, ErrInFlight
	}
	defer e.release(ConversationsKey)

	e.state.set(ConversationsKey, StatusLoading, nil)
	page, err := e.api.GetConversations(ctx, 1, DefaultConversationPage)
	if err != nil {
		return false, e.fail(ctx, ConversationsKey, err, background)
	}

	var newest int64
	for _, c := range page.Conversations {
		if c.LastMessageId > newest {
			newest = c.LastMessageId
		}
	}

	e.mu.Lock()
	prev := int64(0)
	if e.conversations != nil {
		prev = e.conversations.lastMessageId
	}
	e.conversations = &conversationEntry{
		conversations: page.Conversations,
		cachedAt:      e.now(),
		lastMessageId: newest,
	}
	e.mu.Unlock()

	e.state.set(ConversationsKey, StatusSuccess, nil)
	return newest > prev, nil
}

// Send sends text to peer and appends the stored message to the local list
func (e *Engine) Send(ctx context.Context, peer int64, text string) (*sdk.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	msg, err := e.api.SendMessage(ctx, peer, text)
	if err != nil {
		return nil, e.fail(ctx, PeerKey(peer), err, false)
	}

	e.mu.Lock()
	if entry, ok := e.peers.Get(peer); ok {
		entry.messages, _ = mergeNewer(entry.messages, []*sdk.Message{msg})
	}
	e.mu.Unlock()

	e.InvalidateConversations()
	return msg, nil
}

// fail records a failed request and decides what the caller sees. Rate
// limiting is silent for background work and a user notice otherwise.
func (e *Engine) fail(ctx context.Context, key string, err error, background bool) error {
	switch {
	case sdk.IsRateLimited(err):
		if background {
			log.CtxWarn(ctx, "chatsync poll rate limited: key=%s", key)
			e.state.set(key, StatusIdle, nil)
			return ErrTooManyRequests
		}
		e.state.notify(key, StatusError, ErrTooManyRequests, noticeTooManyRequests)
		return ErrTooManyRequests
	case sdk.IsUnauthorized(err):
		e.state.notify(key, StatusError, ErrUnauthorized, noticeUnauthorized)
		return ErrUnauthorized
	case errors.Is(err, context.Canceled):
		e.state.set(key, StatusIdle, nil)
		return err
	default:
		if background {
			log.CtxDebug(ctx, "chatsync poll failed: key=%s, error=%v", key, err)
		} else {
			log.CtxWarn(ctx, "chatsync request failed: key=%s, error=%v", key, err)
		}
		e.state.set(key, StatusError, err)
		return err
	}
}

// skipsAhead reports whether batch is a full newest page that starts after
// the last known message, leaving unseen messages between the two.
func (e *Engine) skipsAhead(known, batch []*sdk.Message) bool {
	if len(known) == 0 || len(batch) < e.pageSize {
		return false
	}
	oldest := batch[0]
	for _, m := range batch[1:] {
		if m != nil && (oldest == nil || after(oldest, m)) {
			oldest = m
		}
	}
	return oldest != nil && after(oldest, known[len(known)-1])
}

// olderRemain reports whether the server holds more history than is loaded
func olderRemain(loaded int, p sdk.Pagination) bool {
	if p.Total > 0 {
		return int64(loaded) < p.Total
	}
	return p.HasNext
}

func (e *Engine) fresh(cachedAt time.Time, ttl time.Duration) bool {
	return !cachedAt.IsZero() && e.now().Sub(cachedAt) < ttl
}

func cloneMessages(msgs []*sdk.Message) []*sdk.Message {
	if msgs == nil {
		return nil
	}
	return append([]*sdk.Message(nil), msgs...)
}
