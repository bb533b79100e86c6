package cache

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. Contents are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
	}
}

// Get returns a copy of the entry stored under key.
func (s *MemoryStore) Get(_ context.Context, key Key) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key.String()]
	if !ok {
		recordMiss(BackendMemory, key.Kind)
		return nil, ErrCacheMiss
	}
	recordHit(BackendMemory, key.Kind)
	return e.clone(), nil
}

// Put stores a copy of entry, replacing any previous one.
func (s *MemoryStore) Put(_ context.Context, entry *Entry) error {
	if err := entry.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.Key().String()] = entry.clone()
	recordWrite(BackendMemory, entry)
	return nil
}

// List returns copies of every entry of objectID, newest first.
func (s *MemoryStore) List(_ context.Context, objectID string) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Entry, 0, 2)
	for _, e := range s.entries {
		if e.ObjectID == objectID {
			out = append(out, e.clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Backend returns "memory".
func (s *MemoryStore) Backend() string {
	return BackendMemory
}
