package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryValue struct {
	data      string
	counter   int64
	expiresAt time.Time // zero means no expiry
}

// Memory is an in-process Store used by tests and available as a
// degraded-mode fallback when Redis is unreachable. All operations are
// safe for concurrent use; Incr is atomic under the store mutex.
type Memory struct {
	mu      sync.Mutex
	values  map[string]*memoryValue
	streams map[string][]Entry
	nextID  int64

	now func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values:  make(map[string]*memoryValue),
		streams: make(map[string][]Entry),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test hook for simulating TTL expiry.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) get(key string) *memoryValue {
	v, ok := m.values[key]
	if !ok {
		return nil
	}
	if !v.expiresAt.IsZero() && !m.now().Before(v.expiresAt) {
		delete(m.values, key)
		return nil
	}
	return v
}

func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.get(key)
	if v == nil {
		v = &memoryValue{}
		m.values[key] = v
	}
	v.counter++
	v.data = fmt.Sprintf("%d", v.counter)
	return v.counter, nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v := m.get(key); v != nil {
		v.expiresAt = m.now().Add(ttl)
	}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.get(key)
	if v == nil {
		return "", ErrNotFound
	}
	return v.data, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := &memoryValue{data: value}
	if ttl > 0 {
		v.expiresAt = m.now().Add(ttl)
	}
	m.values[key] = v
	return nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.get(key)
	if v == nil || v.expiresAt.IsZero() {
		return -1, nil
	}
	return v.expiresAt.Sub(m.now()), nil
}

func (m *Memory) Append(_ context.Context, stream string, fields map[string]string, maxLen int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	id := fmt.Sprintf("%d-0", m.nextID)
	entries := append(m.streams[stream], Entry{ID: id, Fields: copied})

	if maxLen > 0 && int64(len(entries)) > maxLen {
		entries = entries[int64(len(entries))-maxLen:]
	}
	m.streams[stream] = entries
	return id, nil
}

func (m *Memory) RevRange(_ context.Context, stream string, count int64) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.streams[stream]
	result := make([]Entry, 0, count)
	for i := len(entries) - 1; i >= 0 && int64(len(result)) < count; i-- {
		result = append(result, entries[i])
	}
	return result, nil
}

func (m *Memory) ExpireStream(_ context.Context, _ string, _ time.Duration) error {
	return nil
}

func (m *Memory) Ping(_ context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
