package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

// Memory is an in-process cache. Entries are evicted lazily on read.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	nowFunc func() time.Time
}

type memoryEntry struct {
	result    *model.BuyerGroupResult
	expiresAt time.Time
}

// NewMemory creates an in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		nowFunc: time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (m *Memory) WithNow(now func() time.Time) *Memory {
	m.nowFunc = now
	return m
}

func (m *Memory) Get(_ context.Context, key string) (*model.BuyerGroupResult, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.nowFunc().After(entry.expiresAt) {
		m.mu.Lock()
		if cur, still := m.entries[key]; still && m.nowFunc().After(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false
	}
	return entry.result, true
}

func (m *Memory) Set(_ context.Context, key string, result *model.BuyerGroupResult, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{result: result, expiresAt: m.nowFunc().Add(ttl)}
	m.mu.Unlock()
}

func (m *Memory) Purge(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
