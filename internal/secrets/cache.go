// Package secrets provides a TTL cache in front of a secret source so
// hot paths never block on secret-manager round trips.
package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FetchFunc loads the current secret value from the backing source.
type FetchFunc func(ctx context.Context) (string, error)

// Cache caches one secret value for a fixed TTL. A failed refresh
// keeps serving the stale value when one exists rather than failing
// the caller.
type Cache struct {
	mu        sync.Mutex
	fetch     FetchFunc
	ttl       time.Duration
	now       func() time.Time
	value     string
	fetchedAt time.Time
}

// NewCache creates a Cache. nowFn may be nil, defaulting to time.Now.
func NewCache(fetch FetchFunc, ttl time.Duration, nowFn func() time.Time) *Cache {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Cache{fetch: fetch, ttl: ttl, now: nowFn}
}

// Get returns the cached value, refreshing it when the TTL has
// elapsed. Safe for concurrent use.
func (c *Cache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value != "" && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.value, nil
	}

	value, err := c.fetch(ctx)
	if err != nil {
		if c.value != "" {
			return c.value, nil
		}
		return "", fmt.Errorf("fetch secret: %w", err)
	}

	c.value = value
	c.fetchedAt = c.now()
	return c.value, nil
}

// Static wraps a fixed value in a FetchFunc, for configuration-file
// secrets that never rotate.
func Static(value string) FetchFunc {
	return func(context.Context) (string, error) {
		return value, nil
	}
}
