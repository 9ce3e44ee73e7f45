package existence

import (
	"context"
	"sync"

	"redmig/internal/domain"
)

// InMemoryCache holds existence facts for the lifetime of one process.
type InMemoryCache struct {
	mu    sync.RWMutex
	facts map[string]bool
}

// NewMemory constructs an empty in-memory existence cache.
func NewMemory() *InMemoryCache {
	return &InMemoryCache{facts: make(map[string]bool)}
}

func (c *InMemoryCache) Lookup(_ context.Context, key domain.Key) (bool, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	exists, known := c.facts[cacheKey(key)]
	return exists, known, nil
}

func (c *InMemoryCache) Store(_ context.Context, key domain.Key, exists bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.facts[cacheKey(key)] = exists
	return nil
}
