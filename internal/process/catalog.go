package process

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Catalog is a registry of application descriptors by key.
//
// Catalog is safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	apps  map[string]Descriptor
	order []string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		apps: make(map[string]Descriptor),
	}
}

// Register adds a descriptor. Keys must be non-empty and unique.
func (c *Catalog) Register(d Descriptor) error {
	if strings.TrimSpace(d.Key) == "" {
		return ErrEmptyKey
	}
	if d.Type == "" {
		d.Type = TypeApplication
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.apps[d.Key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, d.Key)
	}
	c.apps[d.Key] = d
	c.order = append(c.order, d.Key)
	return nil
}

// Unregister removes a descriptor. Running processes are not affected.
func (c *Catalog) Unregister(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.apps[key]; !exists {
		return false
	}
	delete(c.apps, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the descriptor for key.
func (c *Catalog) Get(key string) (Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.apps[key]
	return d, ok
}

// List returns all descriptors in registration order.
func (c *Catalog) List() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Descriptor, 0, len(c.order))
	for _, key := range c.order {
		result = append(result, c.apps[key])
	}
	return result
}

// Keys returns the registered keys in sorted order.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.apps))
	for key := range c.apps {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Launch opens the application registered under key on s.
func (c *Catalog) Launch(s *Supervisor, key string, args []string, onStarted func(p *Process)) (StartResult, error) {
	d, ok := c.Get(key)
	if !ok {
		return StartFailed, fmt.Errorf("%w: %s", ErrUnknownApplication, key)
	}
	return s.Open(d, args, onStarted), nil
}
