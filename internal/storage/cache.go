package storage

import (
	"sync"
)

// Cache is a read-through cache in front of a Store. Writes go through to the
// backend first, then update the cache.
//
// It assumes it is the only writer of the backend.
type Cache struct {
	backend Store

	// wmu serializes writes so the cache sees them in backend order.
	wmu sync.Mutex
	mu  sync.RWMutex
	// values caches Get results; a nil entry records an absent key.
	values  map[string]*string
	keys    []string
	hasKeys bool
	maxSize int
	// gen changes on every write so that a slow read does not cache a value
	// older than a concurrent write.
	gen uint64
}

// NewCache wraps backend. maxSize bounds the number of cached values; when it
// is reached the cache is cleared.
func NewCache(backend Store, maxSize int) *Cache {
	return &Cache{
		backend: backend,
		values:  make(map[string]*string),
		maxSize: maxSize,
	}
}

// Has implements Store.
func (c *Cache) Has(key string) (bool, error) {
	_, ok, err := c.Get(key)
	return ok, err
}

// Get implements Store.
func (c *Cache) Get(key string) (string, bool, error) {
	c.mu.RLock()
	v, hit := c.values[key]
	gen := c.gen
	c.mu.RUnlock()
	if hit {
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}
	value, ok, err := c.backend.Get(key)
	if err != nil {
		return "", false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return value, ok, nil
	}
	if ok {
		c.put(key, &value)
	} else {
		c.put(key, nil)
	}
	return value, ok, nil
}

// Set implements Store.
func (c *Cache) Set(key, value string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.backend.Set(key, value); err != nil {
		c.invalidate(key)
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if old, hit := c.values[key]; !hit || old == nil {
		// New key: the sorted list is stale.
		c.hasKeys = false
		c.keys = nil
	}
	c.put(key, &value)
	return nil
}

// Delete implements Store.
func (c *Cache) Delete(key string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.backend.Delete(key); err != nil {
		c.invalidate(key)
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.hasKeys = false
	c.keys = nil
	c.put(key, nil)
	return nil
}

// Keys implements Store.
func (c *Cache) Keys() ([]string, error) {
	c.mu.RLock()
	if c.hasKeys {
		out := append([]string(nil), c.keys...)
		c.mu.RUnlock()
		return out, nil
	}
	gen := c.gen
	c.mu.RUnlock()
	keys, err := c.backend.Keys()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if gen == c.gen {
		c.keys = keys
		c.hasKeys = true
	}
	c.mu.Unlock()
	return append([]string(nil), keys...), nil
}

// Close closes the backend if it holds resources.
func (c *Cache) Close() error {
	c.mu.Lock()
	c.values = make(map[string]*string)
	c.keys = nil
	c.hasKeys = false
	c.mu.Unlock()
	return Close(c.backend)
}

// put must be called with mu held.
func (c *Cache) put(key string, v *string) {
	// Simple size limiting: clear if it grows too large.
	if _, exists := c.values[key]; !exists && len(c.values) >= c.maxSize {
		c.values = make(map[string]*string)
	}
	c.values[key] = v
}

func (c *Cache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	delete(c.values, key)
	c.hasKeys = false
	c.keys = nil
}
