package credential

import (
	"context"
	"sync"
)

// MemoryStore implements Store in process memory. It backs tests and
// the degraded mode the session machine falls into when durable storage
// reports ErrStorageUnavailable: the user stays signed in for the
// process lifetime but loses persistence across restarts.
type MemoryStore struct {
	mu   sync.Mutex
	pair *Pair
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save replaces the stored pair.
func (s *MemoryStore) Save(_ context.Context, pair Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := pair
	s.pair = &p
	return nil
}

// Load returns a copy of the stored pair, or nil when empty.
func (s *MemoryStore) Load(_ context.Context) (*Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pair == nil {
		return nil, nil
	}
	p := *s.pair
	return &p, nil
}

// Clear removes the stored pair.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = nil
	return nil
}
