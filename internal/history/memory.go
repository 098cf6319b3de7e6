package history

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process memory. Entries are lost on restart.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	order      []string // keys, oldest first
	maxEntries int
}

// NewMemoryStore creates a MemoryStore holding at most maxEntries entries.
// A non-positive maxEntries means no bound.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]Entry),
		maxEntries: maxEntries,
	}
}

// Add records entry. Adding the same messageId again is a no-op.
func (s *MemoryStore) Add(_ context.Context, entry Entry) error {
	key := Key(entry.MessageID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; exists {
		return nil
	}
	s.entries[key] = entry
	s.order = append(s.order, key)

	if s.maxEntries > 0 {
		for len(s.order) > s.maxEntries {
			delete(s.entries, s.order[0])
			s.order = s.order[1:]
		}
	}
	return nil
}

// Get returns the entry for messageID or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, messageID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[Key(messageID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}

// List returns up to limit entries, newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]Entry, error) {
	limit = normalizeLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, min(limit, len(s.order)))
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[s.order[i]])
	}
	return out, nil
}

// Clear removes every entry.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]Entry)
	s.order = nil
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
