package persist

import (
	"context"
	"sync"
)

// MemoryBackend keeps snapshots in memory. Setting FailWith makes every Write fail.
type MemoryBackend struct {
	mu       sync.Mutex
	data     map[string][]byte
	writes   int
	failWith error
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Read returns a copy of the stored snapshot.
func (m *MemoryBackend) Read(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Write stores a copy of data, or returns the configured failure.
func (m *MemoryBackend) Write(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.data[key] = append([]byte(nil), data...)
	m.writes++
	return nil
}

// FailWith makes subsequent writes return err (nil restores normal writes).
func (m *MemoryBackend) FailWith(err error) {
	m.mu.Lock()
	m.failWith = err
	m.mu.Unlock()
}

// Writes returns how many writes succeeded.
func (m *MemoryBackend) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
