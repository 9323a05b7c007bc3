package cache

import (
	"context"
	"sync"
	"time"
)

// Store is the persistence contract. Put is an upsert keyed by
// (fingerprint, identity): last writer wins, which is acceptable because
// entries are derivable and idempotent, never a source of truth.
type Store interface {
	Get(ctx context.Context, fingerprint, identity string) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

// MemoryStore keeps entries in a mutex-guarded map. It backs tests and
// single-node deployments that run without Postgres.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func memKey(fingerprint, identity string) string {
	return fingerprint + "|" + identity
}

func (m *MemoryStore) Get(_ context.Context, fingerprint, identity string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[memKey(fingerprint, identity)]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (m *MemoryStore) Put(_ context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *entry
	m.entries[memKey(entry.Fingerprint, entry.Identity)] = &clone
	return nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var deleted int64
	for key, entry := range m.entries {
		if entry.CreatedAt.Before(cutoff) {
			delete(m.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

// Len reports the number of stored entries; test helper.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
