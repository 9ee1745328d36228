// Package statscache memoizes per-user workout statistics in process memory.
package statscache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"

	"example.com/ibblog/internal/domain"
	"example.com/ibblog/internal/observability"
)

const megabyte = 1024 * 1024

// entry is what gets stored; AsOf pins the stats to the calendar day they were computed for.
type entry struct {
	AsOf  string           `json:"as_of"`
	Stats domain.UserStats `json:"stats"`
}

// Cache implements domain.StatsMemo on top of freecache.
type Cache struct {
	cache  *freecache.Cache
	expire int
}

// New creates a cache of sizeMB megabytes whose entries expire after ttl. A zero ttl never expires.
func New(sizeMB int, ttl time.Duration) *Cache {
	return &Cache{
		cache:  freecache.NewCache(sizeMB * megabyte),
		expire: int(ttl.Seconds()),
	}
}

// Get returns stats memoized for userID on the calendar day of asOf.
func (c *Cache) Get(userID string, asOf time.Time) (domain.UserStats, bool) {
	raw, err := c.cache.Get(cacheKey(userID))
	if err != nil {
		observability.RecordStatsMemoLookup(false)
		return domain.UserStats{}, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		log.Errorf("failed to unmarshal memoized stats for user %s: %s", userID, err)
		observability.RecordStatsMemoLookup(false)
		return domain.UserStats{}, false
	}
	if e.AsOf != asOf.Format(time.DateOnly) {
		observability.RecordStatsMemoLookup(false)
		return domain.UserStats{}, false
	}

	observability.RecordStatsMemoLookup(true)
	return e.Stats, true
}

// Set memoizes stats for userID as of the calendar day of asOf.
func (c *Cache) Set(userID string, asOf time.Time, stats domain.UserStats) {
	raw, err := json.Marshal(entry{AsOf: asOf.Format(time.DateOnly), Stats: stats})
	if err != nil {
		log.Errorf("failed to marshal stats for user %s: %s", userID, err)
		return
	}
	if err := c.cache.Set(cacheKey(userID), raw, c.expire); err != nil {
		log.Errorf("failed to memoize stats for user %s: %s", userID, err)
	}
}

// Invalidate drops memoized stats for userID.
func (c *Cache) Invalidate(userID string) {
	if c.cache.Del(cacheKey(userID)) {
		log.Debugf("stats memo invalidated for user %s", userID)
	}
}

func cacheKey(userID string) []byte {
	return []byte(fmt.Sprintf("stats::%s", userID))
}
