package kv

import (
	"context"
	"sync"
	"time"
)

var timeNow = time.Now

type memoryItem struct {
	value     []byte
	count     int64
	expiresAt time.Time
}

func (i *memoryItem) expired(now time.Time) bool {
	return now.After(i.expiresAt)
}

// Memory is an in-process Store backed by a mutex-guarded map. Expired
// entries are dropped lazily on access and swept periodically by the janitor.
type Memory struct {
	mu    sync.Mutex
	items map[string]*memoryItem
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]*memoryItem)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if item.expired(timeNow()) {
		delete(m.items, key)
		return nil, false, nil
	}
	return item.value, true, nil
}

func (m *Memory) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := timeNow()
	if item, ok := m.items[key]; ok && !item.expired(now) {
		return false, nil
	}
	m.items[key] = &memoryItem{value: value, expiresAt: now.Add(ttl)}
	return true, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *Memory) Incr(_ context.Context, key string, ttl time.Duration) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := timeNow()
	item, ok := m.items[key]
	if !ok || item.expired(now) {
		item = &memoryItem{count: 1, expiresAt: now.Add(ttl)}
		m.items[key] = item
		return 1, item.expiresAt, nil
	}
	item.count++
	return item.count, item.expiresAt, nil
}

// StartJanitor sweeps expired entries every interval until ctx is canceled.
func (m *Memory) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep(timeNow())
			}
		}
	}()
}

func (m *Memory) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, item := range m.items {
		if item.expired(now) {
			delete(m.items, key)
		}
	}
}

func (m *Memory) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
