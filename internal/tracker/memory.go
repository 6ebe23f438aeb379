package tracker

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store
type MemoryStore struct {
	mu   sync.RWMutex
	sets map[string]map[int64]struct{}
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: make(map[string]map[int64]struct{})}
}

func (m *MemoryStore) Add(_ context.Context, key string, member int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets[key]
	if !ok {
		set = make(map[int64]struct{})
		m.sets[key] = set
	}
	if _, exists := set[member]; exists {
		return false, nil
	}
	set[member] = struct{}{}
	return true, nil
}

func (m *MemoryStore) Remove(_ context.Context, key string, member int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if set, ok := m.sets[key]; ok {
		delete(set, member)
	}
	return nil
}

func (m *MemoryStore) Members(_ context.Context, key string) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.sets[key]
	out := make([]int64, 0, len(set))
	for member := range set {
		out = append(out, member)
	}
	return out, nil
}

// Touch is a no-op; memory entries never expire
func (m *MemoryStore) Touch(context.Context, string) error {
	return nil
}

