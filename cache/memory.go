package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Memory is the in-process implementation used when AWS is not configured,
// and by tests. Entries are stored as JSON so reads see the same
// serialization semantics as the DynamoDB backend.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// now is swappable in tests to drive TTL expiry.
	now func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *Memory) key(kind Kind, id string) string {
	return string(kind) + "/" + id
}

func (m *Memory) Get(_ context.Context, kind Kind, id string, out any) (bool, error) {
	m.mu.RLock()
	e, ok := m.entries[m.key(kind, id)]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if m.now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, m.key(kind, id))
		m.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(e.data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) Put(_ context.Context, kind Kind, id string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[m.key(kind, id)] = memoryEntry{data: data, expiresAt: m.now().Add(kind.TTL())}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, kind Kind, id string) error {
	m.mu.Lock()
	delete(m.entries, m.key(kind, id))
	m.mu.Unlock()
	return nil
}

func (m *Memory) Healthy(context.Context) bool { return true }
