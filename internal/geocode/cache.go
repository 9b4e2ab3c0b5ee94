package geocode

import (
	"sync"
	"time"

	"github.com/fieldops/geosync/internal/domain"
)

// DefaultCacheTTL is how long a cached result (success or failure)
// stays usable.
const DefaultCacheTTL = time.Hour

// cacheEntry holds one cached result and its creation time.
type cacheEntry struct {
	result   domain.GeocodeResult
	storedAt time.Time
}

// resultCache caches geocode outcomes keyed by normalized address.
// Failures are cached too, so a permanently bad address does not
// hot-loop against the provider within the TTL window. Expired entries
// are evicted lazily on lookup; there is no background sweep.
//
// The cache is read and written from the request path and the
// scheduler's timer goroutine, hence the mutex.
type resultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &resultCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// get returns the cached result for key if present and unexpired.
func (c *resultCache) get(key string) (domain.GeocodeResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return domain.GeocodeResult{}, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return domain.GeocodeResult{}, false
	}
	return entry.result, true
}

// put stores a result under key, stamped with the current time.
func (c *resultCache) put(key string, result domain.GeocodeResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: result, storedAt: c.now()}
}

// len returns the number of live plus expired-but-unswept entries.
func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
