// Package cache fronts the hot read paths (session snapshot, results view)
// with a short TTL. Writers invalidate keys synchronously before returning,
// so a client always sees its own write on the next poll.
package cache

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

type Cache struct {
	store *gocache.Cache
	group singleflight.Group
}

func New(defaultTTL time.Duration) *Cache {
	return &Cache{
		store: gocache.New(defaultTTL, 2*defaultTTL),
	}
}

// GetOrSet returns the cached value for key, or fills it from fn.
// Concurrent misses for the same key are collapsed into a single fill.
func (c *Cache) GetOrSet(key string, ttl time.Duration, fn func() (any, error)) (any, error) {
	if v, ok := c.store.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.store.Get(key); ok {
			return v, nil
		}
		v, err := fn()
		if err != nil {
			return nil, err
		}
		c.store.Set(key, v, ttl)
		return v, nil
	})
	return v, err
}

func (c *Cache) Invalidate(keys ...string) {
	for _, k := range keys {
		c.store.Delete(k)
	}
}

// SnapshotKey is the cache key for a session's poll snapshot.
func SnapshotKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session:%s:snapshot", sessionID)
}

// ResultsKey is the cache key for a session's results/host view.
func ResultsKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session:%s:results", sessionID)
}

// SessionKeys lists every cached view for a session; state-changing
// operations invalidate them all.
func SessionKeys(sessionID uuid.UUID) []string {
	return []string{SnapshotKey(sessionID), ResultsKey(sessionID)}
}
