package finnhub

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bobmcallan/handspread/internal/common"
	"github.com/bobmcallan/handspread/internal/models"
)

// cacheEntry holds one symbol's snapshot and when it was fetched.
type cacheEntry struct {
	snap      *models.MarketSnapshot
	fetchedAt time.Time
}

// snapshotCache is a thread-safe in-memory cache of whole market snapshots,
// keyed by uppercase symbol. Whole snapshots keep price, shares, and market
// cap consistent: a cached symbol returns one FetchedAt for all three.
// The singleflight.Group coalesces concurrent fetches for the same symbol.
type snapshotCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

func newSnapshotCache() *snapshotCache {
	return &snapshotCache{
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached snapshot if it is still fresh under the TTL.
// A non-positive TTL never hits, which disables reuse outright.
func (sc *snapshotCache) Get(symbol string, ttl time.Duration) (*models.MarketSnapshot, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	e, ok := sc.entries[symbol]
	if !ok || !common.IsFresh(e.fetchedAt, ttl) {
		return nil, false
	}
	return e.snap, true
}

// Put stores a snapshot, stamping it with the snapshot's own fetch time.
func (sc *snapshotCache) Put(symbol string, snap *models.MarketSnapshot) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.entries[symbol] = cacheEntry{snap: snap, fetchedAt: snap.FetchedAt}
}
