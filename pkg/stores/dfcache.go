package stores

import (
	"context"
	"sync"
	"time"
)

// dfCacheTTL bounds how stale a FreeBytes reading may be before the
// cache forces a fresh statfs call.
const dfCacheTTL = 30 * time.Second

// DFCache memoizes Driver.FreeBytes per store name, since
// recommended-store selection, the metrics Collector and the M&C snapshot
// all ask for it repeatedly and a statfs call is not free on a busy store.
type DFCache struct {
	mu      sync.Mutex
	entries map[string]dfEntry
}

type dfEntry struct {
	bytes   int64
	fetched time.Time
}

// NewDFCache returns an empty DFCache.
func NewDFCache() *DFCache {
	return &DFCache{entries: make(map[string]dfEntry)}
}

// FreeBytes returns store's cached free-byte count, refreshing it via
// driver if the cached value is older than dfCacheTTL.
func (c *DFCache) FreeBytes(ctx context.Context, store string, driver Driver) (int64, error) {
	c.mu.Lock()
	entry, ok := c.entries[store]
	c.mu.Unlock()
	if ok && time.Since(entry.fetched) < dfCacheTTL {
		return entry.bytes, nil
	}

	free, err := driver.FreeBytes(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.entries[store] = dfEntry{bytes: free, fetched: time.Now()}
	c.mu.Unlock()
	return free, nil
}

// Invalidate drops the cached reading for store, forcing the next
// FreeBytes call to hit the driver.
func (c *DFCache) Invalidate(store string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, store)
}
