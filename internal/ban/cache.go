package ban

import (
	"regexp"
	"sync"
	"time"
)

// cacheTTL bounds the cache's staleness: a ban added by another server
// process becomes visible here within one TTL.
const cacheTTL = 60 * time.Second

// uaPattern is a compiled user-agent ban pattern paired with its record.
type uaPattern struct {
	re     *regexp.Regexp
	record Record
}

// cacheSnapshot is the group of containers swapped atomically after a
// refresh, so readers never see a torn mix of old IP bans and new CIDR
// bans.
type cacheSnapshot struct {
	ipBans      map[string]Record
	cidrBans    []struct {
		cidr   string
		record Record
	}
	uaPatterns []uaPattern
	refreshedAt time.Time
}

// cache is the per-process ban cache. Agent bans bypass it entirely: they
// are the highest-priority check and sit on the authenticated path, so
// they always go straight to the store.
type cache struct {
	mu    sync.RWMutex
	snap  cacheSnapshot
	stale bool
}

func newCache() *cache {
	return &cache{snap: cacheSnapshot{ipBans: map[string]Record{}}}
}

// invalidate marks the cache stale so the next read triggers a refresh.
// Called eagerly on any IP/CIDR/UA mutation.
func (c *cache) invalidate() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

// needsRefresh reports whether the cache is stale or past its TTL.
func (c *cache) needsRefresh(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale || now.Sub(c.snap.refreshedAt) > cacheTTL
}

// replace atomically swaps in a freshly-built snapshot.
func (c *cache) replace(snap cacheSnapshot) {
	c.mu.Lock()
	c.snap = snap
	c.stale = false
	c.mu.Unlock()
}

// lookupIP checks the cached IP and CIDR bans for ip, then the UA patterns
// for userAgent. Returns the first match by priority: IP > CIDR > UA.
func (c *cache) lookupIP(ip, userAgent string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if r, ok := c.snap.ipBans[ip]; ok {
		return r, true
	}
	for _, entry := range c.snap.cidrBans {
		if isIPInCIDR(ip, entry.cidr) {
			return entry.record, true
		}
	}
	for _, p := range c.snap.uaPatterns {
		if p.re.MatchString(userAgent) {
			return p.record, true
		}
	}
	return Record{}, false
}
