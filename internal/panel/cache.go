package panel

import (
	"sync"

	"crypto_dash/internal/domain"
)

// CacheObserver is told about every cache lookup.
type CacheObserver interface {
	ObserveCache(hit bool)
}

// RangeCache holds the price series already fetched for one entity, by range.
// Entries are write-once: a later Put for a stored range is ignored.
type RangeCache struct {
	mu     sync.Mutex
	entity string
	series map[domain.RangeKey]domain.PriceSeries

	hits   uint64
	misses uint64
}

// NewRangeCache creates a cache bound to entity.
func NewRangeCache(entity string) *RangeCache {
	return &RangeCache{
		entity: entity,
		series: make(map[domain.RangeKey]domain.PriceSeries),
	}
}

// Entity returns the id the cache is bound to.
func (c *RangeCache) Entity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entity
}

// Get returns the series for rng if entity matches the bound entity and it was stored.
func (c *RangeCache) Get(entity string, rng domain.RangeKey) (domain.PriceSeries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entity != c.entity {
		c.misses++
		return nil, false
	}
	s, ok := c.series[rng]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return s, ok
}

// peek is Get without touching the counters.
func (c *RangeCache) peek(entity string, rng domain.RangeKey) (domain.PriceSeries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entity != c.entity {
		return nil, false
	}
	s, ok := c.series[rng]
	return s, ok
}

// Put stores series for rng. It reports false when the key already exists or the
// entity is not the bound one.
func (c *RangeCache) Put(entity string, rng domain.RangeKey, series domain.PriceSeries) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entity != c.entity {
		return false
	}
	if _, exists := c.series[rng]; exists {
		return false
	}
	c.series[rng] = series
	return true
}

// Reset drops everything and rebinds the cache to entity.
func (c *RangeCache) Reset(entity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entity = entity
	c.series = make(map[domain.RangeKey]domain.PriceSeries)
}

// Len is the number of stored ranges.
func (c *RangeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.series)
}

// Stats returns the lookup counters since creation.
func (c *RangeCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
