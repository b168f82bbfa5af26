package cache

import (
	"context"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// MemoryCache keeps at most size entries, evicting the oldest insertion first.
type MemoryCache struct {
	mu      sync.Mutex
	size    int
	entries *orderedmap.OrderedMap[string, []byte]
}

// NewMemoryCache builds a cache bounded to size entries; size <= 0 means unbounded.
func NewMemoryCache(size int) *MemoryCache {
	return &MemoryCache{size: size, entries: orderedmap.New[string, []byte]()}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Set(key, append([]byte(nil), value...))
	for c.size > 0 && c.entries.Len() > c.size {
		c.entries.Delete(c.entries.Oldest().Key)
	}
	return nil
}
