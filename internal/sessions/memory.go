package sessions

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with process-local storage. Suitable for a
// single instance; use the redis store when running more than one.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*memoryItem
	done chan struct{}
}

type memoryItem struct {
	value      []byte
	expiration time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		data: make(map[string]*memoryItem),
		done: make(chan struct{}),
	}

	// Start cleanup goroutine
	go ms.cleanup()

	return ms
}

// Get retrieves a value
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.data[key]
	if !exists {
		return nil, ErrNotFound
	}

	if time.Now().After(item.expiration) {
		return nil, ErrNotFound
	}

	return item.value, nil
}

// Set stores a value with a TTL
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = &memoryItem{
		value:      value,
		expiration: time.Now().Add(ttl),
	}

	return nil
}

// Delete removes a value
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// cleanup periodically removes expired items
func (m *MemoryStore) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			for key, item := range m.data {
				if now.After(item.expiration) {
					delete(m.data, key)
				}
			}
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}

// Close stops the cleanup goroutine
func (m *MemoryStore) Close() error {
	close(m.done)
	return nil
}
