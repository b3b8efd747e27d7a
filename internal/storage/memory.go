package storage

import "sync"

// Memory is a process-lifetime store, the equivalent of session storage.
// Keys keep their first insertion position until removed.
type Memory struct {
	quota int64 // Maximum bytes (keys + values), 0 = unlimited
	size  int64 // Current bytes

	items map[string]string
	order []string

	mu sync.RWMutex
}

// NewMemory creates an in-memory store with the given quota in bytes.
// A quota of zero or less disables the limit.
func NewMemory(quota int64) *Memory {
	return &Memory{
		quota: quota,
		items: make(map[string]string),
	}
}

// Keys returns the stored keys in insertion order.
func (m *Memory) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, len(m.order))
	copy(keys, m.order)
	return keys, nil
}

// Get returns the value stored under key.
func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.items[key]
	return v, ok, nil
}

// Set stores value under key. It fails with ErrQuotaExceeded and leaves the
// store unchanged when the write does not fit.
func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, exists := m.items[key]
	delta := int64(len(value))
	if exists {
		delta -= int64(len(old))
	} else {
		delta += int64(len(key))
	}

	if m.quota > 0 && m.size+delta > m.quota {
		return ErrQuotaExceeded
	}

	if !exists {
		m.order = append(m.order, key)
	}
	m.items[key] = value
	m.size += delta
	return nil
}

// Remove deletes key.
func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.items[key]
	if !ok {
		return nil
	}
	delete(m.items, key)
	m.size -= int64(len(key) + len(v))
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Clear removes every key.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]string)
	m.order = nil
	m.size = 0
	return nil
}

// Size returns the bytes currently accounted against the quota.
func (m *Memory) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}
