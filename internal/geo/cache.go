package geo

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"vacme/internal/geo/metrics"
)

const (
	// cacheTTL is deliberately longer than one daily batch cycle but short
	// enough that a refreshed reference dataset is picked up within a day.
	cacheTTL = 26 * time.Hour

	cacheMaxEntries = 500
)

// LoadFunc computes a lookup result on cache miss. found=false means "no
// match" and is cached like any other result so repeated futile lookups stay
// cheap.
type LoadFunc func(plz string) (value string, found bool, err error)

type cacheEntry struct {
	value     string
	found     bool
	writtenAt time.Time
}

// Cache memoizes PLZ lookups with a fixed TTL and a fixed maximum entry
// count. A load error degrades to "no match" instead of propagating: a
// missing geo mapping must never abort an upload batch.
type Cache struct {
	kind    string
	load    LoadFunc
	metrics *metrics.Metrics
	log     *zap.Logger

	mu      sync.Mutex
	entries map[string]cacheEntry

	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewCache builds a cache for one lookup kind ("kanton" or "medstat").
// metrics may be nil.
func NewCache(kind string, load LoadFunc, m *metrics.Metrics, log *zap.Logger) *Cache {
	return &Cache{
		kind:       kind,
		load:       load,
		metrics:    m,
		log:        log,
		entries:    map[string]cacheEntry{},
		ttl:        cacheTTL,
		maxEntries: cacheMaxEntries,
		now:        time.Now,
	}
}

// Get resolves a postal code. A blank postal code is "no match" without
// touching the reference table.
func (c *Cache) Get(plz string) (string, bool) {
	key := strings.TrimSpace(plz)
	if key == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if entry, ok := c.entries[key]; ok && now.Sub(entry.writtenAt) < c.ttl {
		c.recordHit()
		return entry.value, entry.found
	}
	c.recordMiss()

	value, found, err := c.load(key)
	if err != nil {
		c.log.Warn("plz lookup failed, treating as no match",
			zap.String("kind", c.kind),
			zap.String("plz", key),
			zap.Error(err))
		value, found = "", false
	}

	c.evictIfFull(key, now)
	c.entries[key] = cacheEntry{value: value, found: found, writtenAt: now}
	return value, found
}

// evictIfFull makes room for key by dropping expired entries first, then the
// oldest one. Linear scans are fine at 500 entries.
func (c *Cache) evictIfFull(key string, now time.Time) {
	if _, ok := c.entries[key]; ok || len(c.entries) < c.maxEntries {
		return
	}
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for k, e := range c.entries {
		if now.Sub(e.writtenAt) >= c.ttl {
			delete(c.entries, k)
			continue
		}
		if oldestKey == "" || e.writtenAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.writtenAt
		}
	}
	if len(c.entries) >= c.maxEntries && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *Cache) recordHit() {
	if c.metrics != nil {
		c.metrics.RecordHit(c.kind)
	}
}

func (c *Cache) recordMiss() {
	if c.metrics != nil {
		c.metrics.RecordMiss(c.kind)
	}
}
