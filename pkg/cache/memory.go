package cache

import (
	"container/list"
	"context"
	"path"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is an in-process LRU cache with per-key expiry. It is used in
// tests and single-instance deployments without Redis.
type Memory struct {
	capacity int
	items    map[string]*list.Element
	eviction *list.List
	mu       sync.Mutex
	now      func() time.Time
}

// MemoryOption configures Memory.
type MemoryOption func(*Memory)

// WithCapacity bounds the number of entries. Panics if n is not positive.
func WithCapacity(n int) MemoryOption {
	if n <= 0 {
		panic("cache: capacity must be positive")
	}
	return func(m *Memory) { m.capacity = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates a Memory cache holding up to 10000 entries by default.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		capacity: 10000,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	m.put(key, stored, m.deadline(ttl))
	return true
}

func (m *Memory) Delete(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[key]; ok {
		m.remove(elem)
	}
	return true
}

// DeletePattern uses path.Match glob rules, which agree with Redis for
// "*", "?" and character classes on keys without "/".
func (m *Memory) DeletePattern(_ context.Context, pattern string) bool {
	if _, err := path.Match(pattern, ""); err != nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, elem := range m.items {
		if ok, _ := path.Match(pattern, key); ok {
			m.remove(elem)
		}
	}
	return true
}

func (m *Memory) Increment(_ context.Context, key string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		n         int64
		expiresAt time.Time
	)
	if e, ok := m.lookup(key); ok {
		cur, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, false
		}
		n, expiresAt = cur, e.expiresAt
	}
	n++
	m.put(key, []byte(strconv.FormatInt(n, 10)), expiresAt)
	return n, true
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return false
	}
	if ttl <= 0 {
		m.remove(m.items[key])
		return true
	}
	e.expiresAt = m.now().Add(ttl)
	return true
}

// Len reports the number of stored entries, including expired ones that
// have not been touched since expiry.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eviction.Len()
}

func (m *Memory) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

// lookup returns a live entry and refreshes its recency. Caller holds mu.
func (m *Memory) lookup(key string) (*memoryEntry, bool) {
	elem, ok := m.items[key]
	if !ok {
		return nil, false
	}
	e := elem.Value.(*memoryEntry)
	if e.expired(m.now()) {
		m.remove(elem)
		return nil, false
	}
	m.eviction.MoveToFront(elem)
	return e, true
}

func (m *Memory) put(key string, value []byte, expiresAt time.Time) {
	if elem, ok := m.items[key]; ok {
		e := elem.Value.(*memoryEntry)
		e.value, e.expiresAt = value, expiresAt
		m.eviction.MoveToFront(elem)
		return
	}

	m.items[key] = m.eviction.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	if m.eviction.Len() > m.capacity {
		if oldest := m.eviction.Back(); oldest != nil {
			m.remove(oldest)
		}
	}
}

func (m *Memory) remove(elem *list.Element) {
	m.eviction.Remove(elem)
	delete(m.items, elem.Value.(*memoryEntry).key)
}
