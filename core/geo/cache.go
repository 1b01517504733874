package geo

import (
	"sync"
	"time"

	"github.com/fleetcore/dispatchd/core/model"
)

// DefaultBucket groups cache entries into hourly traffic buckets.
const DefaultBucket = time.Hour

// PairCache caches travel estimates keyed by coordinate pair and time
// bucket. It is shared across solver runs: reads dominate, writes are
// append-only, and last-writer-wins is acceptable because estimates are
// deterministic for a given pair and bucket.
type PairCache struct {
	bucket time.Duration

	mu      sync.RWMutex
	entries map[string]TravelEstimate
}

// NewPairCache creates a cache with the given bucket size, defaulting
// to DefaultBucket when bucket is not positive.
func NewPairCache(bucket time.Duration) *PairCache {
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	return &PairCache{bucket: bucket, entries: make(map[string]TravelEstimate)}
}

func (c *PairCache) key(origin, destination model.Coord, at time.Time) string {
	return origin.Key() + "|" + destination.Key() + "|" + at.UTC().Truncate(c.bucket).Format("2006010215")
}

// Get returns the cached estimate for the pair in the bucket containing at.
func (c *PairCache) Get(origin, destination model.Coord, at time.Time) (TravelEstimate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	est, ok := c.entries[c.key(origin, destination, at)]
	return est, ok
}

// Put stores an estimate for the pair in the bucket containing at.
func (c *PairCache) Put(origin, destination model.Coord, at time.Time, est TravelEstimate) {
	c.mu.Lock()
	c.entries[c.key(origin, destination, at)] = est
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *PairCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
