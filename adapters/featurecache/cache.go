package featurecache

import (
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"phonostat/domain/feature"
	"phonostat/ports"
)

// Cache is an in-memory feature vector cache with compute-once semantics.
// Concurrent requests for the same (raw_name, version) key collapse into a
// single extraction via singleflight. Extraction is pure, so duplicate work
// would be wasteful but never incorrect; the single-flight is an efficiency
// guarantee only.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]feature.Vector
	group   singleflight.Group
}

// New creates an empty cache
func New() *Cache {
	return &Cache{
		entries: make(map[string]feature.Vector),
	}
}

func cacheKey(rawName string, version feature.Version) string {
	return string(version) + "\x00" + rawName
}

// GetOrCompute returns the cached vector or computes it exactly once
func (c *Cache) GetOrCompute(rawName string, extractor ports.ExtractorPort) feature.Vector {
	key := cacheKey(rawName, extractor.Version())

	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return v
	}

	out, _, _ := c.group.Do(key, func() (interface{}, error) {
		vec := extractor.Extract(rawName)
		c.mu.Lock()
		c.entries[key] = vec
		c.mu.Unlock()
		return vec, nil
	})
	return out.(feature.Vector)
}

// Invalidate drops all cached vectors for a version. An explicit version bump
// is the only invalidation path; vectors otherwise live indefinitely.
func (c *Cache) Invalidate(version feature.Version) {
	prefix := string(version) + "\x00"
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// Len reports the number of cached vectors
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
