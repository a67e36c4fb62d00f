package store

import "sync"

// MemoryKV is an in-process key/value store with the same contract as Store's kv methods.
// FailWith makes every call return the given error, for exercising failure paths.
type MemoryKV struct {
	mu       sync.Mutex
	data     map[string]string
	FailWith error
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: map[string]string{}}
}

// Get implements the key/value contract.
func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return "", false, &PersistenceError{Op: "get", Key: key, Err: m.FailWith}
	}
	v, ok := m.data[key]
	return v, ok, nil
}

// Set implements the key/value contract.
func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return &PersistenceError{Op: "set", Key: key, Err: m.FailWith}
	}
	m.data[key] = value
	return nil
}

// Remove implements the key/value contract.
func (m *MemoryKV) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return &PersistenceError{Op: "remove", Key: key, Err: m.FailWith}
	}
	delete(m.data, key)
	return nil
}

// Has reports whether key is present, ignoring FailWith.
func (m *MemoryKV) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}
