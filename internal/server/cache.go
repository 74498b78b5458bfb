package server

import (
	"context"
	"sync"
	"time"

	"github.com/mj1618/winsync/internal/model"
	"github.com/mj1618/winsync/internal/registry"
	"github.com/mj1618/winsync/internal/store"
)

// WindowCache provides a TTL-based cache of the decoded shared window list.
// Sibling writes seen through the store subscription invalidate it at once,
// so the TTL only bounds staleness for backends without notifications.
type WindowCache struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	windows   []model.WindowRecord
	count     int
	timestamp time.Time
	valid     bool
	// generation is bumped by Invalidate; a load only caches its result
	// when no invalidation happened while it was reading.
	generation uint64

	unsubscribe func()
}

// NewWindowCache creates a cache over st. A ttl of 0 disables caching.
func NewWindowCache(st store.Store, ttl time.Duration) *WindowCache {
	c := &WindowCache{store: st, ttl: ttl, now: time.Now}
	c.unsubscribe = st.Subscribe(store.KeyWindows, func([]byte) { c.Invalidate() })
	return c
}

// Windows returns the cached list if within TTL, otherwise reads fresh.
func (c *WindowCache) Windows(ctx context.Context) ([]model.WindowRecord, error) {
	windows, _, err := c.load(ctx)
	return windows, err
}

// Count returns the cached id counter alongside the list.
func (c *WindowCache) Count(ctx context.Context) (int, error) {
	_, count, err := c.load(ctx)
	return count, err
}

func (c *WindowCache) load(ctx context.Context) ([]model.WindowRecord, int, error) {
	c.mu.Lock()
	if c.ttl > 0 && c.valid && c.now().Sub(c.timestamp) < c.ttl {
		windows, count := model.CloneWindows(c.windows), c.count
		c.mu.Unlock()
		return windows, count, nil
	}
	gen := c.generation
	c.mu.Unlock()

	windows, err := registry.ReadWindows(ctx, c.store)
	if err != nil {
		return nil, 0, err
	}
	count, err := registry.ReadCount(ctx, c.store)
	if err != nil {
		return nil, 0, err
	}

	if c.ttl > 0 {
		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return model.CloneWindows(windows), count, nil
		}
		c.windows = windows
		c.count = count
		c.timestamp = c.now()
		c.valid = true
		c.mu.Unlock()
	}
	return model.CloneWindows(windows), count, nil
}

// Invalidate drops the cached list.
func (c *WindowCache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.windows = nil
	c.generation++
	c.mu.Unlock()
}

// Close stops listening for store notifications.
func (c *WindowCache) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}
