package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/station-watch/internal/models"
)

const keyPrefix = "station-reading:"

// MemcachedCache implements Cache using memcached. Values are JSON so absent
// reading fields survive the round trip as absent.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211").
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		return nil, fmt.Errorf("memcached: no server addresses in %q", addrs)
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// key builds a memcached-safe key; station ids are short tokens without spaces.
func key(stationID string) string {
	return keyPrefix + stationID
}

// Get implements Cache.Get. Returns false, nil on cache miss; false, err on error.
func (c *MemcachedCache) Get(ctx context.Context, stationID string) (models.Reading, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Reading{}, false, err
	}
	item, err := c.client.Get(key(stationID))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return models.Reading{}, false, nil
		}
		return models.Reading{}, false, fmt.Errorf("memcached get: %w", err)
	}
	var r models.Reading
	if err := json.Unmarshal(item.Value, &r); err != nil {
		return models.Reading{}, false, fmt.Errorf("memcached decode: %w", err)
	}
	return r, true, nil
}

// Set implements Cache.Set.
func (c *MemcachedCache) Set(ctx context.Context, stationID string, value models.Reading, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("memcached encode: %w", err)
	}
	return c.client.Set(&memcache.Item{
		Key:        key(stationID),
		Value:      raw,
		Expiration: expirationSeconds(ttl),
	})
}

// expirationSeconds converts ttl to memcached's relative expiry. Values over
// 30 days would be read as a unix timestamp, so they are clamped.
func expirationSeconds(ttl time.Duration) int32 {
	const maxRelativeExp = 30 * 24 * 60 * 60
	secs := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		secs++
	}
	if secs <= 0 {
		return 1
	}
	if secs > maxRelativeExp {
		return maxRelativeExp
	}
	return int32(secs)
}

// Ping checks memcached is reachable. Used by /health.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the client's idle connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
