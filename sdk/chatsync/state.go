package chatsync

import (
	"strconv"
	"sync"
)

// Status is where a sync key is in its load cycle
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ConversationsKey is the sync key of the conversation list
const ConversationsKey = "conversations"

// PeerKey is the sync key of the conversation with peer
func PeerKey(peer int64) string {
	return "peer:" + strconv.FormatInt(peer, 10)
}

// Event is delivered to listeners on every status change. Notice is set
// when the user should be told something, e.g. they are sending too fast.
type Event struct {
	Key    string
	Status Status
	Err    error
	Notice string
}

// Listener observes sync events. Listeners run on the goroutine that caused
// the event and must not block.
type Listener func(Event)

// SyncState tracks the status of every sync key and fans events out to any
// number of listeners. The zero value is not usable; use NewSyncState.
type SyncState struct {
	mu        sync.RWMutex
	statuses  map[string]Status
	listeners map[int]Listener
	nextId    int
}

// NewSyncState creates an empty SyncState
func NewSyncState() *SyncState {
	return &SyncState{
		statuses:  make(map[string]Status),
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers l and returns a func that removes it
func (s *SyncState) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextId
	s.nextId++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Status returns the current status of key, StatusIdle if never loaded
func (s *SyncState) Status(key string) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statuses[key]
}

func (s *SyncState) set(key string, status Status, err error) {
	s.emit(Event{Key: key, Status: status, Err: err})
}

func (s *SyncState) notify(key string, status Status, err error, notice string) {
	s.emit(Event{Key: key, Status: status, Err: err, Notice: notice})
}

func (s *SyncState) emit(ev Event) {
	s.mu.Lock()
	s.statuses[ev.Key] = ev.Status
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}
