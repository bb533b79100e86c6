package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Backend names.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Store persists entries. Put is an upsert that is atomic per key.
type Store interface {
	// Get returns the entry for key or ErrCacheMiss.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Put inserts or replaces the entry under its key.
	Put(ctx context.Context, entry *Entry) error

	// List returns every entry of objectID, newest first.
	List(ctx context.Context, objectID string) ([]*Entry, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Backend names the storage technology.
	Backend() string
}

// StoreError wraps a backend failure.
type StoreError struct {
	Op      string
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeError(backend, op string, err error) error {
	CacheErrors.WithLabelValues(backend, op).Inc()
	return &StoreError{Op: op, Backend: backend, Err: err}
}

func sortNewestFirst(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].WrittenAt.After(entries[j].WrittenAt)
	})
}
