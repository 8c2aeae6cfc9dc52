// Package cache implements an expiring key-value cache over a pluggable
// persistent store. Entries carry the timestamp of their write; the reader
// declares how stale a value it is willing to accept, and entries that fail
// the reader's bound are evicted lazily at read time. There is no background
// sweep and no write-time TTL.
package cache

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/types"
	"github.com/shorecrew/shorecrew/utils"
)

// EntryVersion is stored with every entry so future format changes can be
// detected. It is not enforced on read.
const EntryVersion = "1"

// Status classifies the outcome of a lookup, distinguishing "not present"
// from "present but expired" and from "store or codec broken". Callers that
// only care about presence use Get/GetMaxAge; the instrumentation layer and
// tests use LookupMaxAge directly.
type Status int

const (
	StatusHit Status = iota
	StatusMiss
	StatusExpired
	StatusCorrupt
)

func (s Status) String() string {
	switch s {
	case StatusHit:
		return "hit"
	case StatusMiss:
		return "miss"
	case StatusExpired:
		return "expired"
	case StatusCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Cache wraps a raw store with namespacing, entry envelopes and read-side
// expiry. All operations are total: failures degrade to false/absent results
// plus a log line and are never surfaced as errors or panics. Concurrent
// writers to the same key are not coordinated beyond the store's own per-key
// atomicity; last write wins.
type Cache struct {
	store     types.CacheStore
	logger    types.Logger
	namespace string
	knownKeys []string
	now       func() time.Time
}

// New returns a cache over st. knownKeys is the fixed set of application keys
// Clear is allowed to remove; Clear never touches anything else sharing the
// underlying store. Timestamps come from a single wall-clock source.
func New(st types.CacheStore, logger types.Logger, namespace string, knownKeys []string) *Cache {
	return &Cache{
		store:     st,
		logger:    logger,
		namespace: namespace,
		knownKeys: knownKeys,
		now:       time.Now,
	}
}

// WithClock replaces the wall-clock source. Intended for tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Set wraps value in an entry stamped with the current time and writes it,
// fully replacing any prior entry under key. Returns false if serialization
// or the underlying write fails.
func (c *Cache) Set(key string, value interface{}) bool {
	if key == "" {
		c.logger.Error("Attempted to set cache entry with empty key")
		return false
	}

	raw, err := utils.Marshal(value)
	if err != nil {
		c.logger.Error("Failed to serialize cache value",
			zap.String("key", key), zap.Error(err))
		return false
	}

	entry := types.CacheEntry{
		Value:     raw,
		Timestamp: c.now().UnixMilli(),
		Version:   EntryVersion,
	}

	serialized, err := utils.Marshal(entry)
	if err != nil {
		c.logger.Error("Failed to serialize cache entry",
			zap.String("key", key), zap.Error(err))
		return false
	}

	if !c.store.RawSet(c.fullKey(key), utils.BytesToString(serialized)) {
		c.logger.Warn("Store rejected cache write", zap.String("key", key))
		return false
	}

	return true
}

// Get returns the stored value regardless of its age.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	value, status := c.lookup(key, 0, false)
	return value, status == StatusHit
}

// GetMaxAge returns the stored value if it was written no longer than maxAge
// ago. An older entry is removed from the store as a side effect and treated
// as absent. A maxAge of zero or below disables the bound, same as Get.
func (c *Cache) GetMaxAge(key string, maxAge time.Duration) (json.RawMessage, bool) {
	value, status := c.lookup(key, maxAge, maxAge > 0)
	return value, status == StatusHit
}

// LookupMaxAge is GetMaxAge with the lookup outcome exposed. A maxAge of zero
// or below disables the freshness bound.
func (c *Cache) LookupMaxAge(key string, maxAge time.Duration) (json.RawMessage, Status) {
	return c.lookup(key, maxAge, maxAge > 0)
}

// Remove deletes the entry unconditionally. Returns false only on store
// failure; removing an absent key succeeds.
func (c *Cache) Remove(key string) bool {
	if !c.store.RawRemove(c.fullKey(key)) {
		c.logger.Warn("Store rejected cache remove", zap.String("key", key))
		return false
	}
	return true
}

// Clear removes the known application keys, never a wildcard of the
// underlying store. Unknown keys sharing the store are left untouched.
func (c *Cache) Clear() bool {
	ok := true
	for _, key := range c.knownKeys {
		if !c.store.RawRemove(c.fullKey(key)) {
			c.logger.Warn("Store rejected cache remove during clear",
				zap.String("key", key))
			ok = false
		}
	}
	return ok
}

func (c *Cache) lookup(key string, maxAge time.Duration, bounded bool) (json.RawMessage, Status) {
	fullKey := c.fullKey(key)

	serialized, ok := c.store.RawGet(fullKey)
	if !ok {
		return nil, StatusMiss
	}

	var entry types.CacheEntry
	if err := utils.Unmarshal([]byte(serialized), &entry); err != nil {
		c.logger.Warn("Dropping corrupt cache entry",
			zap.String("key", key), zap.Error(err))
		c.store.RawRemove(fullKey)
		return nil, StatusCorrupt
	}

	if bounded {
		age := c.now().UnixMilli() - entry.Timestamp
		if age > maxAge.Milliseconds() {
			c.store.RawRemove(fullKey)
			c.logger.Debug("Evicted expired cache entry",
				zap.String("key", key),
				zap.Int64("age_ms", age),
				zap.Int64("max_age_ms", maxAge.Milliseconds()))
			return nil, StatusExpired
		}
	}

	return entry.Value, StatusHit
}

func (c *Cache) fullKey(key string) string {
	if c.namespace == "" {
		return key
	}
	return c.namespace + ":" + key
}
