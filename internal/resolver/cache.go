package resolver

import (
	"sync"

	"github.com/matheus3301/wprelay/internal/normalize"
)

// contactCache maps suffix-stripped identifiers to display labels.
type contactCache struct {
	mu     sync.RWMutex
	labels map[string]string
}

func newContactCache() *contactCache {
	return &contactCache{labels: make(map[string]string)}
}

func (c *contactCache) Label(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.labels[normalize.StripSuffix(id)]
	return l, ok
}

func (c *contactCache) Remember(id, label string) {
	if id == "" || label == "" {
		return
	}
	c.mu.Lock()
	c.labels[normalize.StripSuffix(id)] = label
	c.mu.Unlock()
}

func (c *contactCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.labels)
}

func (c *contactCache) clear() {
	c.mu.Lock()
	clear(c.labels)
	c.mu.Unlock()
}
