package attribution

import (
	"sync"
	"time"
)

// DefaultTTL is how long a persisted attribution value survives without a new write.
const DefaultTTL = 30 * 24 * time.Hour

// Store persists attribution values across page loads. Set overwrites
// unconditionally; first-touch callers must check Get before calling Set.
type Store interface {
	Get(key Key) (string, bool)
	Set(key Key, value string, ttl time.Duration)
	Clear(keys ...Key)
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryStore is an in-process Store with TTL expiry.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore. A nil clock uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{entries: make(map[Key]memoryEntry), now: now}
}

func (m *MemoryStore) Get(key Key) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || !m.now().Before(e.expires) {
		return "", false
	}
	return e.value, e.value != ""
}

func (m *MemoryStore) Set(key Key, value string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expires: m.now().Add(ttl)}
}

func (m *MemoryStore) Clear(keys ...Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
}
