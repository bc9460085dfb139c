package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryProvider is a mutex-guarded, process-local StorageProvider. It
// is the default backend for tests and single-process deployments; TTLs
// are honored lazily (checked on read) rather than by a background
// sweep.
type MemoryProvider struct {
	mu      sync.Mutex
	values  map[string]memVal
	indexes map[string]map[string]float64
}

type memVal struct {
	body    []byte
	expires time.Time // zero means no expiry
}

// NewMemoryProvider returns an empty MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		values:  make(map[string]memVal),
		indexes: make(map[string]map[string]float64),
	}
}

func (m *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !v.expires.IsZero() && time.Now().After(v.expires) {
		delete(m.values, key)
		return nil, ErrNotFound
	}
	return v.body, nil
}

func (m *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	m.values[key] = memVal{body: value, expires: expires}
	return nil
}

func (m *MemoryProvider) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryProvider) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return false, nil
	}
	if !v.expires.IsZero() && time.Now().After(v.expires) {
		delete(m.values, key)
		return false, nil
	}
	return true, nil
}

func (m *MemoryProvider) AddToIndex(_ context.Context, index, key string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indexes[index]
	if !ok {
		idx = make(map[string]float64)
		m.indexes[index] = idx
	}
	idx[key] = score
	return nil
}

func (m *MemoryProvider) ListByScoreDesc(_ context.Context, index string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.indexes[index]
	if !ok {
		return nil, nil
	}
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return idx[keys[i]] > idx[keys[j]] })
	if limit > 0 && limit < len(keys) {
		keys = keys[:limit]
	}
	return keys, nil
}

func (m *MemoryProvider) RemoveFromIndex(_ context.Context, index, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx, ok := m.indexes[index]; ok {
		delete(idx, key)
	}
	return nil
}
