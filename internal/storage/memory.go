package storage

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt *time.Time
}

// Memory is a mutex-guarded in-process Store. It backs the service when
// no DATABASE_URL is configured and is the store used in tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

func memoryKey(namespace, key string) string {
	return namespace + "\x00" + key
}

// Get retrieves a value by namespace and key
func (s *Memory) Get(_ context.Context, namespace, key string) ([]byte, *time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[memoryKey(namespace, key)]
	if !ok {
		return nil, nil, nil
	}

	// Copy so callers cannot mutate stored bytes
	value := make([]byte, len(entry.value))
	copy(value, entry.value)

	var expiresAt *time.Time
	if entry.expiresAt != nil {
		t := *entry.expiresAt
		expiresAt = &t
	}

	return value, expiresAt, nil
}

// Set writes a value, replacing any existing entry
func (s *Memory) Set(_ context.Context, namespace, key string, value []byte, expiresAt *time.Time) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	var exp *time.Time
	if expiresAt != nil {
		t := *expiresAt
		exp = &t
	}

	s.mu.Lock()
	s.entries[memoryKey(namespace, key)] = memoryEntry{value: stored, expiresAt: exp}
	s.mu.Unlock()

	return nil
}

// Delete removes a key
func (s *Memory) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	delete(s.entries, memoryKey(namespace, key))
	s.mu.Unlock()

	return nil
}

// DeleteExpired removes all expired entries across every namespace
func (s *Memory) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, entry := range s.entries {
		if entry.expiresAt != nil && !now.Before(*entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}

	return removed, nil
}

// Close is a no-op
func (s *Memory) Close() {}
