package cache

import (
	"context"
	"path/filepath"
	"sync"
	"time"
)

type memEntry struct {
	value    []byte
	counter  int64
	isCount  bool
	expireAt time.Time // zero means no expiration
}

func (e *memEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// MemoryService is the default Service: an in-process map guarded by a
// mutex, with lazy expiration checked on access. It does not survive
// process restart and does not coordinate across replicas.
type MemoryService struct {
	mu      sync.Mutex
	entries map[string]*memEntry
}

// NewMemoryService constructs an empty MemoryService.
func NewMemoryService() *MemoryService {
	return &MemoryService{entries: make(map[string]*memEntry)}
}

func (m *MemoryService) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.expired(time.Now()) {
		return nil, ErrNotFound
	}
	return e.value, nil
}

func (m *MemoryService) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &memEntry{value: value}
	if ttl > 0 {
		e.expireAt = time.Now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *MemoryService) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryService) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.expired(time.Now()) {
		return false, nil
	}
	return true, nil
}

func (m *MemoryService) Incr(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.expired(time.Now()) {
		e = &memEntry{isCount: true}
		if ttl > 0 {
			e.expireAt = time.Now().Add(ttl)
		}
		m.entries[key] = e
	}
	e.counter += delta
	e.isCount = true
	return e.counter, nil
}

func (m *MemoryService) GetCounter(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.expired(time.Now()) || !e.isCount {
		return 0, ErrNotFound
	}
	return e.counter, nil
}

func (m *MemoryService) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.expired(time.Now()) {
		return 0, ErrNotFound
	}
	if e.expireAt.IsZero() {
		return 0, nil
	}
	return time.Until(e.expireAt), nil
}

func (m *MemoryService) DeletePattern(_ context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.entries {
		if ok, _ := filepath.Match(pattern, key); ok {
			delete(m.entries, key)
			n++
		}
	}
	return n, nil
}

func (m *MemoryService) HealthCheck(_ context.Context) error { return nil }

func (m *MemoryService) Close() error { return nil }
