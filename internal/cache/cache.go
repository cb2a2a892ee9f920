package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/station-watch/internal/models"
)

// Cache stores station readings keyed by station id.
// Get returns cached data if present and not expired, Set stores data with TTL.
type Cache interface {
	Get(ctx context.Context, stationID string) (models.Reading, bool, error)
	Set(ctx context.Context, stationID string, value models.Reading, ttl time.Duration) error
}

// InMemoryCache implements Cache using a map with TTL-based expiration.
// Expired entries are removed on access.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
	now  func() time.Time
}

type cacheEntry struct {
	value     models.Reading
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
		now:  time.Now,
	}
}

// Get returns (reading, true, nil) on a hit and (zero, false, nil) on a miss
// or expiry.
func (c *InMemoryCache) Get(ctx context.Context, stationID string) (models.Reading, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[stationID]
	if !ok {
		return models.Reading{}, false, nil
	}
	if c.now().After(entry.expiresAt) {
		delete(c.data, stationID)
		return models.Reading{}, false, nil
	}
	return entry.value, true, nil
}

// Set stores the reading until ttl elapses.
func (c *InMemoryCache) Set(ctx context.Context, stationID string, value models.Reading, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[stationID] = cacheEntry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}
