// Package memory provides the in-process snapshot cache.
package memory

import (
	"sync"
	"time"

	"github.com/alanyoungcy/polyhub/internal/domain"
)

// DefaultTTL is how long a snapshot is served without re-aggregating.
const DefaultTTL = 60 * time.Second

// SnapshotCache is a single-slot cache holding the latest aggregation.
// Expired snapshots are kept so they can be served when the upstream fails.
type SnapshotCache struct {
	mu   sync.RWMutex
	ttl  time.Duration
	snap domain.Snapshot
	set  bool
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)

// NewSnapshotCache creates an empty cache. A non-positive ttl uses DefaultTTL.
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SnapshotCache{ttl: ttl}
}

// TTL returns the configured freshness window.
func (c *SnapshotCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the stored snapshot if it covers key.
func (c *SnapshotCache) Get(key domain.SnapshotKey, now time.Time) (domain.Snapshot, bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.set || !c.snap.Key.Covers(key) {
		return domain.Snapshot{}, false, false
	}
	return c.snap, c.snap.Age(now) >= c.ttl, true
}

// Put replaces the slot.
func (c *SnapshotCache) Put(key domain.SnapshotKey, markets []domain.Market, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap = domain.Snapshot{Markets: markets, FetchedAt: now, Key: key}
	c.set = true
}

// Last returns the most recent snapshot regardless of age.
func (c *SnapshotCache) Last() (domain.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap, c.set
}

// IsStale reports whether the cache is empty or past its TTL.
func (c *SnapshotCache) IsStale(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.set || c.snap.Age(now) >= c.ttl
}
