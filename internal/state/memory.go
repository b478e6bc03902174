// internal/state/memory.go
package state

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a process-local NonceStore. It is safe for concurrent use
// and purges expired entries every purgeN calls.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]time.Time
	useCount uint64
	purgeN   uint64

	now func() time.Time
}

// NewMemoryStore creates a MemoryStore; purgeEvery <= 0 defaults to 1024.
func NewMemoryStore(purgeEvery int) *MemoryStore {
	if purgeEvery <= 0 {
		purgeEvery = 1024
	}
	return &MemoryStore{
		entries: make(map[string]time.Time, 1024),
		purgeN:  uint64(purgeEvery),
		now:     time.Now,
	}
}

func (m *MemoryStore) Use(_ context.Context, id string, expiresAt time.Time) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, fmt.Errorf("state: id is required")
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.useCount++
	if m.useCount%m.purgeN == 0 {
		m.purgeLocked(now)
	}

	if until, ok := m.entries[id]; ok && until.After(now) {
		return false, nil
	}
	m.entries[id] = expiresAt
	return true, nil
}

// Len reports the number of tracked ids, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryStore) purgeLocked(now time.Time) {
	for k, until := range m.entries {
		if !until.After(now) {
			delete(m.entries, k)
		}
	}
}
