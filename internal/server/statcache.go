package server

import (
	"sync"
	"time"

	"github.com/iluksbr/filerelay/internal/config"
	"github.com/iluksbr/filerelay/internal/relaymetrics"
	"github.com/iluksbr/filerelay/internal/wire"
)

// statCache remembers packed stat records keyed by resolved real path,
// aged by a 1Hz tick counter rather than wall clock (spec §4.9, §5): an
// entry is valid for StatCacheTTLTicks ticks, and every
// StatCacheCleanupEveryTicks ticks a sweep drops anything stale. The
// tick counter wraps at MaxCurrTime.
type statCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	tick    int

	metrics *relaymetrics.ServerMetrics
}

type cacheEntry struct {
	rec       wire.StatRecord
	storedAt  int
}

func newStatCache(m *relaymetrics.ServerMetrics) *statCache {
	return &statCache{entries: make(map[string]cacheEntry), metrics: m}
}

// get returns a cached record if present and not yet expired.
func (c *statCache) get(path string) (wire.StatRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok || c.age(e.storedAt) >= config.StatCacheTTLTicks {
		if c.metrics != nil {
			c.metrics.StatCacheMisses.Inc()
		}
		return wire.StatRecord{}, false
	}
	if c.metrics != nil {
		c.metrics.StatCacheHits.Inc()
	}
	return e.rec, true
}

// put stores or refreshes a cache entry.
func (c *statCache) put(path string, rec wire.StatRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = cacheEntry{rec: rec, storedAt: c.tick}
}

// age reports ticks elapsed since storedAt, accounting for wraparound
// at MaxCurrTime.
func (c *statCache) age(storedAt int) int {
	d := c.tick - storedAt
	if d < 0 {
		d += config.MaxCurrTime
	}
	return d
}

// advance moves the tick counter forward by one (wrapping at
// MaxCurrTime) and, every StatCacheCleanupEveryTicks ticks, sweeps
// expired entries. Called once per second by the server's tick loop.
func (c *statCache) advance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick = (c.tick + 1) % config.MaxCurrTime
	if c.tick%config.StatCacheCleanupEveryTicks != 0 {
		return
	}
	for path, e := range c.entries {
		if c.age(e.storedAt) >= config.StatCacheTTLTicks {
			delete(c.entries, path)
		}
	}
}

// runTicker drives advance() at 1Hz until stop is closed.
func (c *statCache) runTicker(stop <-chan struct{}) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c.advance()
		}
	}
}
