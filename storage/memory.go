package storage

import (
	"context"
	"sync"
)

// Memory is an in-process KV for tests and embedded deployments.
// Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	items  map[string]string
	broken bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

// Get returns the value under key.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.broken {
		return "", false, ErrUnavailable
	}
	v, ok := m.items[key]
	return v, ok, nil
}

// Set writes value under key.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return ErrUnavailable
	}
	m.items[key] = value
	return nil
}

// Remove deletes key. Removing an absent key is a no-op.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return ErrUnavailable
	}
	delete(m.items, key)
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Keys returns all stored keys in unspecified order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	return keys
}

// SetBroken toggles simulated store failure. Every operation fails with
// ErrUnavailable while broken, letting tests exercise degradation paths.
func (m *Memory) SetBroken(broken bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broken = broken
}
