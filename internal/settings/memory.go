package settings

import (
	"context"
	"sync"
)

// MemoryStore keeps settings in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns a store seeded with values.
func NewMemoryStore(values map[string]string) *MemoryStore {
	copied := make(map[string]string, len(values))
	for key, value := range values {
		copied[key] = value
	}

	return &MemoryStore{values: copied}
}

// Get implements core.SettingsStore.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[key]

	return value, ok, nil
}

// Set implements core.SettingsStore.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value

	return nil
}
