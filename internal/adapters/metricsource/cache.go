package metricsource

import (
	"context"
	"sync"
	"time"

	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
)

type cacheEntry struct {
	value     *float64
	expiresAt time.Time
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// CachedSource memoizes lookups for a short TTL so rules sharing a metric
// query the backend once per evaluation pass. Errors are not cached.
type CachedSource struct {
	source monitoring.MetricSource
	ttl    time.Duration
	now    func() time.Time

	mu     sync.Mutex
	data   map[string]cacheEntry
	hits   uint64
	misses uint64
}

var _ monitoring.MetricSource = (*CachedSource)(nil)

func NewCachedSource(source monitoring.MetricSource, ttl time.Duration) *CachedSource {
	return &CachedSource{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		data:   make(map[string]cacheEntry),
	}
}

func (c *CachedSource) GetLatestValue(ctx context.Context, metric, tenantID string, window time.Duration) (*float64, error) {
	key := metric + "\x00" + tenantID + "\x00" + window.String()
	now := c.now()

	c.mu.Lock()
	if entry, ok := c.data[key]; ok && now.Before(entry.expiresAt) {
		c.hits++
		c.mu.Unlock()
		return copyValue(entry.value), nil
	}
	c.misses++
	c.mu.Unlock()

	value, err := c.source.GetLatestValue(ctx, metric, tenantID, window)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.data[key] = cacheEntry{value: copyValue(value), expiresAt: now.Add(c.ttl)}
	c.evictExpiredLocked(now)
	c.mu.Unlock()

	return value, nil
}

// Stats returns a snapshot of hit and miss counts
func (c *CachedSource) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Entries: len(c.data)}
}

func (c *CachedSource) evictExpiredLocked(now time.Time) {
	for key, entry := range c.data {
		if !now.Before(entry.expiresAt) {
			delete(c.data, key)
		}
	}
}

func copyValue(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
