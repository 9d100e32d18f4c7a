package kvstore

import (
	"context"
	"sync"
	"time"

	"github.com/devlens/devlens/internal/common"
)

type memoryItem struct {
	value     []byte
	count     int64
	expiresAt time.Time
}

// Memory is a process-local Store with a background janitor reclaiming
// expired entries. Suitable only for single-instance deployments.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryItem

	// Now is the clock used for expiry checks; overridable in tests.
	Now  func() time.Time
	stop chan struct{}
	once sync.Once
}

func NewMemory(sweepInterval time.Duration) *Memory {
	m := &Memory{
		items: make(map[string]memoryItem),
		Now:   time.Now,
		stop:  make(chan struct{}),
	}

	if sweepInterval > 0 {
		go m.janitor(sweepInterval)
	}

	return m
}

func (m *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Memory) sweep() {
	now := m.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, item := range m.items {
		if now.After(item.expiresAt) {
			delete(m.items, k)
		}
	}
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = memoryItem{value: value, expiresAt: m.Now().Add(ttl)}
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok || m.Now().After(item.expiresAt) {
		delete(m.items, key)
		return nil, common.ErrNotFound
	}

	return item.value, nil
}

func (m *Memory) GetDel(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	delete(m.items, key)

	if !ok || m.Now().After(item.expiresAt) {
		return nil, common.ErrNotFound
	}

	return item.value, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

func (m *Memory) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := m.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok || now.After(item.expiresAt) {
		// first hit opens a new window
		item = memoryItem{expiresAt: now.Add(window)}
	}

	item.count++
	m.items[key] = item

	return item.count, item.expiresAt, nil
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}
