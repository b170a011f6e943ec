package cache

import (
	"context"
	"sync"
	"time"

	"DeForge/pkg/models"
)

type memoryEntry struct {
	payload []byte
	expires time.Time
}

// Memory is an in-process TTL cache
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates an in-process cache. A nil clock uses time.Now.
func NewMemory(ttl time.Duration, now func() time.Time) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     clockOrNow(now),
	}
}

// Get implements Store
func (m *Memory) Get(ctx context.Context, key string) (*models.ForensicAnalysisResult, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	entry, ok := m.entries[key]
	if ok && !m.now().Before(entry.expires) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return nil, false, nil
	}
	result, err := decode(entry.payload)
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

// Set implements Store
func (m *Memory) Set(ctx context.Context, key string, result *models.ForensicAnalysisResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := encode(result)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = memoryEntry{payload: payload, expires: now.Add(m.ttl)}
	return nil
}

// Len returns the number of live entries
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for _, e := range m.entries {
		if now.Before(e.expires) {
			n++
		}
	}
	return n
}

// Close implements Store
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	return nil
}
