// Package depthcache is the injected cache collaborator. The engine itself
// holds no cross-query state; callers that want memoized books wire one of
// these in.
package depthcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ammdepth/internal/model"
)

// Cache stores computed depth snapshots keyed by query shape.
type Cache interface {
	Get(ctx context.Context, key string) (model.DepthData, bool, error)
	Set(ctx context.Context, key string, data model.DepthData, ttl time.Duration) error
	Close() error
}

// Key builds the cache key for a query: chain, pool, kind, and every
// parameter that changes the output shape.
func Key(q model.Query) string {
	return fmt.Sprintf("depth:%d:%s:%s:%g:%g:%d:%d",
		q.ChainID, q.Pool, q.Kind, q.ReferencePrice, q.Precision, q.MaxLevels, q.BlockNumber)
}

type memoryEntry struct {
	data      model.DepthData
	expiresAt time.Time
}

// Memory is a TTL-bounded in-process cache.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (model.DepthData, bool, error) {
	m.mu.RLock()
	entry, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return model.DepthData{}, false, nil
	}
	if m.now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.data, key)
		m.mu.Unlock()
		return model.DepthData{}, false, nil
	}
	return entry.data, true, nil
}

func (m *Memory) Set(_ context.Context, key string, data model.DepthData, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	m.data[key] = memoryEntry{data: data, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	return nil
}
