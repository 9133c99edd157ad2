package adapter

import "sync"

// nameCache remembers queues this adapter has seen exist.
type nameCache struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

func newNameCache() *nameCache {
	return &nameCache{names: make(map[string]struct{})}
}

func (c *nameCache) has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.names[name]
	return ok
}

func (c *nameCache) add(name string) {
	c.mu.Lock()
	c.names[name] = struct{}{}
	c.mu.Unlock()
}

func (c *nameCache) remove(name string) {
	c.mu.Lock()
	delete(c.names, name)
	c.mu.Unlock()
}
