package cache

import (
	"sync"

	"github.com/meigma/refval"
)

// Memory is the in-memory reference backend. Capacity is unbounded.
//
// Values are cloned on the way in and out, so callers can never mutate
// cached state through a retained pointer.
type Memory struct {
	mu     sync.RWMutex
	values map[string]*refval.ReferenceValue
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]*refval.ReferenceValue)}
}

// Set implements Cache. It never fails.
func (m *Memory) Set(name string, value *refval.ReferenceValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value.Clone()
	return nil
}

// Get implements Cache.
func (m *Memory) Get(name string) (*refval.ReferenceValue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[name]
	if !ok {
		return nil, false
	}
	return value.Clone(), true
}

// GetAll implements Cache.
func (m *Memory) GetAll() ([]*refval.ReferenceValue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*refval.ReferenceValue, 0, len(m.values))
	for _, value := range m.values {
		out = append(out, value.Clone())
	}
	return out, nil
}

var _ Cache = (*Memory)(nil)
