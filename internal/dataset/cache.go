package dataset

import (
	"sync"
	"time"

	"bikeshare-dashboard/internal/models"
)

// Dataset is the enriched daily and hourly table pair of one source version.
// Tables are read-only once built and can be shared across goroutines.
type Dataset struct {
	Key      string
	Daily    *models.Table
	Hourly   *models.Table
	LoadedAt time.Time
}

// Cache maps a source-version key to its enriched dataset.
// Entries only leave through Invalidate or Purge.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Dataset
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Dataset)}
}

// Get returns the dataset stored under key
func (c *Cache) Get(key string) (*Dataset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ds, ok := c.entries[key]
	return ds, ok
}

// Put stores ds under key. A redundant concurrent load storing an
// equivalent dataset under the same key simply replaces it.
func (c *Cache) Put(key string, ds *Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = ds
}

// Invalidate removes key and reports whether it was present
func (c *Cache) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Purge removes every entry and returns how many were dropped
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]*Dataset)
	return n
}

// Len returns the number of cached versions
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
