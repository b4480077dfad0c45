package domain

import (
	"context"
	"time"
)

// SnapshotKey identifies the request shape that produced a snapshot. Only the
// aggregation target is part of the key: response modes re-slice the same
// canonical list, so a snapshot built for a larger target serves any smaller
// one.
type SnapshotKey struct {
	Target int
}

// Covers reports whether a snapshot built for k can answer a request for o.
func (k SnapshotKey) Covers(o SnapshotKey) bool {
	return k.Target >= o.Target
}

// Snapshot is one complete, merged and volume-sorted aggregation result.
type Snapshot struct {
	Markets   []Market
	FetchedAt time.Time
	Key       SnapshotKey
}

// Age returns how old the snapshot is at now.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// SnapshotCache holds the most recent aggregation result.
type SnapshotCache interface {
	// Get returns the current snapshot when it covers key. expired reports
	// whether the snapshot is older than the cache TTL.
	Get(key SnapshotKey, now time.Time) (snap Snapshot, expired bool, ok bool)
	// Put replaces the slot wholesale.
	Put(key SnapshotKey, markets []Market, now time.Time)
	// Last returns the most recent snapshot regardless of key or age.
	Last() (Snapshot, bool)
	// IsStale reports whether the slot is empty or past its TTL.
	IsStale(now time.Time) bool
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
