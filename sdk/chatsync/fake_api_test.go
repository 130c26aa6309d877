package chatsync

import (
	"context"
	"sync"

	"github.com/mbeoliero/campuschat/sdk"
)

// fakeAPI serves a single viewer's history like the server does: pages are
// cut newest first and each page is returned oldest first.
type fakeAPI struct {
	mu       sync.Mutex
	viewer   int64
	history  map[int64][]*sdk.Message // oldest first
	convs    []*sdk.Conversation
	nextId   int64
	clock    int64
	err      error
	errOnce  bool
	block    chan struct{}
	started  chan struct{}
	calls    map[string]int
	lastPage int
}

func newFakeAPI(viewer int64) *fakeAPI {
	return &fakeAPI{
		viewer:  viewer,
		history: make(map[int64][]*sdk.Message),
		calls:   make(map[string]int),
		clock:   1_700_000_000_000,
	}
}

// receive stores a message from peer to the viewer
func (f *fakeAPI) receive(peer int64, text string) *sdk.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store(peer, f.viewer, text)
}

func (f *fakeAPI) store(from, to int64, text string) *sdk.Message {
	f.nextId++
	f.clock += 1000
	msg := &sdk.Message{Id: f.nextId, SenderId: from, ReceiverId: to, Message: text, MessageType: "text", CreatedAt: f.clock}
	peer := to
	if peer == f.viewer {
		peer = from
	}
	f.history[peer] = append(f.history[peer], msg)
	return msg
}

func (f *fakeAPI) failWith(err error, once bool) {
	f.mu.Lock()
	f.err, f.errOnce = err, once
	f.mu.Unlock()
}

func (f *fakeAPI) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) enter(name string) error {
	f.mu.Lock()
	f.calls[name]++
	block, started := f.block, f.started
	err := f.err
	if f.errOnce {
		f.err = nil
	}
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return err
}

func (f *fakeAPI) SendMessage(ctx context.Context, receiverId int64, text string) (*sdk.Message, error) {
	if err := f.enter("send"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store(f.viewer, receiverId, text), nil
}

func (f *fakeAPI) GetHistory(ctx context.Context, peerId int64, page, limit int) (*sdk.HistoryPage, error) {
	f.mu.Lock()
	f.lastPage = page
	f.mu.Unlock()
	if err := f.enter("history"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	all := f.history[peerId]
	end := len(all) - (page-1)*limit
	start := end - limit
	if start < 0 {
		start = 0
	}
	var msgs []*sdk.Message
	if end > 0 {
		msgs = append(msgs, all[start:end]...)
	}
	return &sdk.HistoryPage{
		Messages:   msgs,
		Pagination: sdk.Pagination{Page: page, Limit: limit, Total: int64(len(all)), HasNext: start > 0, HasPrev: page > 1},
	}, nil
}

func (f *fakeAPI) GetConversations(ctx context.Context, page, limit int) (*sdk.ConversationPage, error) {
	if err := f.enter("conversations"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &sdk.ConversationPage{Conversations: append([]*sdk.Conversation(nil), f.convs...)}, nil
}
