package authz

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is the optional short-lived read cache in front of the role and
// membership stores. Entries are TTL-bounded and invalidated on every
// administrative mutation, so a stale read is limited to the TTL window.
//
// Layout: an in-process expirable LRU (L1) with an optional Redis tier (L2)
// shared across instances. Redis errors fail open to an L1 miss so the
// engine keeps answering from the database when Redis is down.
type Cache struct {
	l1     *expirable.LRU[string, []byte]
	redis  *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCache creates a read cache with the given L1 size and entry TTL.
// redisClient may be nil to run with the in-process tier only.
func NewCache(size int, ttl time.Duration, redisClient *redis.Client) *Cache {
	if size <= 0 {
		size = 4096
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{
		l1:     expirable.NewLRU[string, []byte](size, nil, ttl),
		redis:  redisClient,
		ttl:    ttl,
		prefix: "authz:",
	}
}

// Get looks up key and unmarshals the cached value into out. It returns
// false on a miss or on any decode/Redis error.
func (c *Cache) Get(ctx context.Context, key string, out interface{}) bool {
	if data, ok := c.l1.Get(key); ok {
		if err := json.Unmarshal(data, out); err == nil {
			return true
		}
		c.l1.Remove(key)
	}

	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false
	}
	c.l1.Add(key, data)
	return true
}

// Set stores v under key in both tiers. Encoding or Redis failures are
// ignored; the cache is advisory.
func (c *Cache) Set(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.l1.Add(key, data)
	if c.redis != nil {
		c.redis.Set(ctx, c.prefix+key, data, c.ttl)
	}
}

// Invalidate drops the given keys from both tiers. Called by the registries
// after every mutation that could change a cached decision.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		c.l1.Remove(key)
	}
	if c.redis != nil {
		prefixed := make([]string, len(keys))
		for i, key := range keys {
			prefixed[i] = c.prefix + key
		}
		c.redis.Del(ctx, prefixed...)
	}
}

// Purge drops every entry from the in-process tier. Redis entries expire on
// their own TTL.
func (c *Cache) Purge() {
	c.l1.Purge()
}
