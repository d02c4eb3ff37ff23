package cart

import (
	"context"
	"sync"
	"time"
)

// Sessions keeps one open Store per session id so concurrent requests of a
// session share the same ledger and checkout state. Stores are hydrated on
// first use; stores idle for longer than the configured TTL are dropped and
// rehydrated from the persister on next use.
type Sessions struct {
	opts    Options
	ns      string
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*sessionEntry
}

type sessionEntry struct {
	store    *Store
	lastUsed time.Time
}

// NewSessions creates a registry. Keys are persisted as namespace:id.
func NewSessions(namespace string, idleTTL time.Duration, opts Options) *Sessions {
	if opts.Persister == nil {
		opts.Persister = NewMemoryPersister()
	}
	return &Sessions{
		opts:    opts,
		ns:      namespace,
		idleTTL: idleTTL,
		now:     time.Now,
		entries: make(map[string]*sessionEntry),
	}
}

// Key returns the persistence key of a session id.
func (s *Sessions) Key(id string) string { return s.ns + ":" + id }

// Get returns the store for a session id, hydrating it when not open.
// Hydration runs without the registry lock, so a slow persister only
// delays callers of the same id. When two callers hydrate the same id
// concurrently, the first store registered wins.
func (s *Sessions) Get(ctx context.Context, id string) (*Store, error) {
	if store, ok := s.lookup(id); ok {
		return store, nil
	}

	store, err := Open(ctx, s.Key(id), s.opts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.entries[id]; ok {
		e.lastUsed = now
		return e.store, nil
	}
	s.entries[id] = &sessionEntry{store: store, lastUsed: now}
	return store, nil
}

func (s *Sessions) lookup(id string) (*Store, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = s.now()
	return e.store, true
}

// Len returns the number of open stores.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// sweep drops idle stores. Stores with a checkout in flight are kept.
func (s *Sessions) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if now.Sub(e.lastUsed) >= s.idleTTL && !e.store.IsLoading() {
			delete(s.entries, id)
		}
	}
}

// StartSweeper launches a goroutine that drops idle stores every idleTTL.
// It stops when ctx is cancelled.
func (s *Sessions) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.idleTTL)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.sweep(now)
			}
		}
	}()
}
