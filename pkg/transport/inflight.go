package transport

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Exchange describes one running chat exchange.
type Exchange struct {
	RequestID string
	Session   string
	Started   time.Time
}

type inflightEntry struct {
	Exchange
	cancel context.CancelFunc
	done   chan struct{}
}

// InFlightRegistry tracks running exchanges by request ID and session.
// Cancelling an exchange makes the engine commit the partial reply, so
// callers that must observe the committed state wait for the exchange to
// finish (see CancelSession).
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]*inflightEntry
	now     func() time.Time
}

// NewInFlightRegistry creates an empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{
		entries: make(map[string]*inflightEntry),
		now:     time.Now,
	}
}

// Register records an exchange for session under request ID id. The
// returned release func must be called once the exchange has committed;
// it removes the entry without cancelling it.
func (r *InFlightRegistry) Register(id, session string, cancel context.CancelFunc) (release func()) {
	e := &inflightEntry{
		Exchange: Exchange{RequestID: id, Session: session, Started: r.now()},
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	r.mu.Lock()
	r.entries[id] = e
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			if r.entries[id] == e {
				delete(r.entries, id)
			}
			r.mu.Unlock()
			close(e.done)
		})
	}
}

// Cancel cancels the exchange with request ID id. It reports whether the
// ID was registered.
func (r *InFlightRegistry) Cancel(id string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if ok {
		e.cancel()
	}
	return ok
}

// CancelSession cancels every exchange of session and waits until each has
// released, or until ctx is done. It returns the number cancelled.
func (r *InFlightRegistry) CancelSession(ctx context.Context, session string) (int, error) {
	r.mu.Lock()
	var matched []*inflightEntry
	for _, e := range r.entries {
		if e.Session == session {
			matched = append(matched, e)
		}
	}
	r.mu.Unlock()

	for _, e := range matched {
		e.cancel()
	}
	for _, e := range matched {
		select {
		case <-e.done:
		case <-ctx.Done():
			return len(matched), ctx.Err()
		}
	}
	return len(matched), nil
}

// CancelAll cancels every registered exchange without waiting and returns
// how many were cancelled.
func (r *InFlightRegistry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.cancel()
	}
	return len(r.entries)
}

// Len returns the number of registered exchanges.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns the registered exchanges, oldest first.
func (r *InFlightRegistry) Snapshot() []Exchange {
	r.mu.Lock()
	out := make([]Exchange, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Exchange)
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b Exchange) int {
		return a.Started.Compare(b.Started)
	})
	return out
}
