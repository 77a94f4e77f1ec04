package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryProvider is an in-process Provider used when no Valkey endpoint is
// configured. Entries are evicted lazily on read.
type MemoryProvider struct {
	mu    sync.RWMutex
	data  map[string]memoryItem
	lists map[string][][]byte
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryProvider creates an empty in-memory cache.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		data:  make(map[string]memoryItem),
		lists: make(map[string][][]byte),
	}
}

// Get retrieves a cached value if present and not expired.
func (m *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !it.expiresAt.IsZero() && time.Now().After(it.expiresAt) {
		delete(m.data, key)
		return nil, ErrCacheMiss
	}
	value := make([]byte, len(it.value))
	copy(value, it.value)
	return value, nil
}

// Set stores a value with an optional TTL. A non-positive TTL means no expiry.
func (m *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = newMemoryItem(value, ttl)
	return nil
}

// SetNX stores the value only when the key is absent or expired.
func (m *MemoryProvider) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if it, ok := m.data[key]; ok {
		if it.expiresAt.IsZero() || time.Now().Before(it.expiresAt) {
			return false, nil
		}
	}
	m.data[key] = newMemoryItem(value, ttl)
	return true, nil
}

// PushCapped prepends a value to a list and truncates it to max entries.
func (m *MemoryProvider) PushCapped(_ context.Context, key string, value []byte, max int) error {
	if max <= 0 {
		max = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := make([]byte, len(value))
	copy(entry, value)
	list := append([][]byte{entry}, m.lists[key]...)
	if len(list) > max {
		list = list[:max]
	}
	m.lists[key] = list
	return nil
}

// List returns up to limit entries from the head of a list, most recent first.
func (m *MemoryProvider) List(_ context.Context, key string, limit int) ([][]byte, error) {
	if limit <= 0 {
		limit = 1
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.lists[key]
	if len(list) > limit {
		list = list[:limit]
	}
	out := make([][]byte, len(list))
	for i, v := range list {
		out[i] = make([]byte, len(v))
		copy(out[i], v)
	}
	return out, nil
}

// Del removes a key from both the value and list namespaces.
func (m *MemoryProvider) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	delete(m.lists, key)
	return nil
}

// Close is a no-op for the in-memory cache.
func (m *MemoryProvider) Close() error { return nil }

func newMemoryItem(value []byte, ttl time.Duration) memoryItem {
	v := make([]byte, len(value))
	copy(v, value)
	it := memoryItem{value: v}
	if ttl > 0 {
		it.expiresAt = time.Now().Add(ttl)
	}
	return it
}
