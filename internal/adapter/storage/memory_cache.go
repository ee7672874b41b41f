package storage

import (
	"context"
	"sync"
	"time"
)

// sweepInterval bounds how often a claim walks the map for expired keys.
const sweepInterval = time.Minute

// MemoryCache claims idempotency keys in process, for runs without Redis.
type MemoryCache struct {
	mu        sync.Mutex
	keys      map[string]time.Time
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		keys: make(map[string]time.Time),
		ttl:  idempotencyKeyTTL,
		now:  time.Now,
	}
}

func (c *MemoryCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.evictExpired(now)
	if expiry, ok := c.keys[key]; ok && now.Before(expiry) {
		return false, nil
	}
	c.keys[key] = now.Add(c.ttl)
	return true, nil
}

func (c *MemoryCache) ReleaseIdempotency(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	return nil
}

// evictExpired drops lapsed keys. Callers hold c.mu.
func (c *MemoryCache) evictExpired(now time.Time) {
	if now.Before(c.nextSweep) {
		return
	}
	for key, expiry := range c.keys {
		if !now.Before(expiry) {
			delete(c.keys, key)
		}
	}
	c.nextSweep = now.Add(sweepInterval)
}
