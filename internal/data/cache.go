package data

import (
	"os"
	"sync"
	"time"

	"katsuo-market/internal/model"
)

// CacheEntry is a loaded dataset together with the file state it came from.
type CacheEntry struct {
	Dataset   model.Dataset
	ModTime   time.Time
	ExpiresAt time.Time
}

// DatasetCache keeps recently loaded datasets in memory for the dashboard
// API. An entry is served until its TTL expires or the file's modification
// time changes, whichever comes first.
type DatasetCache struct {
	mu    sync.RWMutex
	store map[string]*CacheEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewDatasetCache creates a cache. A zero or negative ttl disables caching.
func NewDatasetCache(ttl time.Duration) *DatasetCache {
	return &DatasetCache{
		store: make(map[string]*CacheEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves a cached dataset if available, not expired, and the file
// has not changed since it was loaded.
func (c *DatasetCache) Get(path string, modTime time.Time) (model.Dataset, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.store[path]
	if !exists {
		return nil, false
	}
	if c.now().After(entry.ExpiresAt) || !entry.ModTime.Equal(modTime) {
		return nil, false
	}
	return entry.Dataset, true
}

// Set stores a dataset and drops any expired entries.
func (c *DatasetCache) Set(path string, modTime time.Time, ds model.Dataset) {
	if c == nil || c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.store {
		if now.After(entry.ExpiresAt) {
			delete(c.store, key)
		}
	}
	c.store[path] = &CacheEntry{
		Dataset:   ds,
		ModTime:   modTime,
		ExpiresAt: now.Add(c.ttl),
	}
}

// Clear removes all entries from the cache.
func (c *DatasetCache) Clear() {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store = make(map[string]*CacheEntry)
}

// Load returns the dataset at path, from cache when fresh. Callers must not
// mutate the returned dataset.
func (c *DatasetCache) Load(path string) (model.Dataset, error) {
	var modTime time.Time
	if info, err := os.Stat(path); err == nil {
		modTime = info.ModTime()
	}
	if ds, ok := c.Get(path, modTime); ok {
		return ds, nil
	}
	ds, err := LoadDataset(path)
	if err != nil {
		return nil, err
	}
	c.Set(path, modTime, ds)
	return ds, nil
}
