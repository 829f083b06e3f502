// Package memory provides an in-memory implementation of session.Store
// for testing and single-process deployments. Conversations are lost when
// the process restarts. Optional LRU eviction limits memory usage and an
// optional TTL expires idle sessions.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rhuss/aichat/pkg/api"
	"github.com/rhuss/aichat/pkg/session"
	"github.com/rhuss/aichat/pkg/storage"
)

// entry holds a stored conversation and its metadata.
type entry struct {
	conv     api.Conversation
	lastUsed time.Time
	lruElem  *list.Element // position in LRU list
}

// Store is an in-memory session store with optional LRU eviction.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lruList *list.List // front = most recently used, back = least recently used
	maxSize int        // 0 = unlimited
	ttl     time.Duration
	now     func() time.Time
	closed  bool
}

// Ensure Store implements session.Store at compile time.
var _ session.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTTL expires sessions that have not been read or written for d.
// Zero disables expiry.
func WithTTL(d time.Duration) Option {
	return func(s *Store) { s.ttl = d }
}

// WithClock replaces the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the least recently used session is
// evicted when the limit is reached.
func New(maxSize int, opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the conversation for sessionID, or an empty conversation
// when none is stored or it has expired.
func (s *Store) Get(_ context.Context, sessionID string) (api.Conversation, error) {
	if err := storage.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	e, ok := s.entries[sessionID]
	if !ok {
		return api.Conversation{}, nil
	}
	now := s.now()
	if s.expired(e, now) {
		s.remove(sessionID, e)
		return api.Conversation{}, nil
	}

	e.lastUsed = now
	s.lruList.MoveToFront(e.lruElem)

	// Callers only append through Conversation.Append, which copies, but
	// hand out a copy anyway so the stored slice cannot be aliased.
	return e.conv.Append(), nil
}

// Set replaces the conversation for sessionID.
func (s *Store) Set(_ context.Context, sessionID string, conv api.Conversation) error {
	if err := storage.ValidateSessionID(sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}

	now := s.now()
	if e, ok := s.entries[sessionID]; ok {
		e.conv = conv.Append()
		e.lastUsed = now
		s.lruList.MoveToFront(e.lruElem)
		return nil
	}

	// Evict if at capacity.
	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.lruList.PushFront(sessionID)
	s.entries[sessionID] = &entry{
		conv:     conv.Append(),
		lastUsed: now,
		lruElem:  elem,
	}
	return nil
}

// Len returns the number of sessions currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close drops all sessions. Subsequent operations return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = make(map[string]*entry)
	s.lruList.Init()
	return nil
}

func (s *Store) expired(e *entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.lastUsed) >= s.ttl
}

// remove deletes one entry. Must be called with s.mu held.
func (s *Store) remove(id string, e *entry) {
	s.lruList.Remove(e.lruElem)
	delete(s.entries, id)
}

// evictOldest removes the least recently used entry.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}

	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)
}
