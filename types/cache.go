package types

import (
	"encoding/json"
	"time"
)

// CacheStore is the raw key-value contract the expiring cache is built on.
// Implementations are synchronous and total: every failure mode degrades to
// a false/absent result plus a diagnostic log line, never an error value.
type CacheStore interface {
	LifecycleManager
	RawGet(key string) (string, bool)
	RawSet(key string, serialized string) bool
	RawRemove(key string) bool
}

type CacheStoreCreator func(config *CacheConfig) (CacheStore, error)

// Cache is the expiring local cache. Freshness is declared by the reader:
// Get returns the stored value regardless of age, GetMaxAge treats entries
// older than maxAge as absent and removes them as a side effect.
type Cache interface {
	Set(key string, value interface{}) bool
	Get(key string) (json.RawMessage, bool)
	GetMaxAge(key string, maxAge time.Duration) (json.RawMessage, bool)
	Remove(key string) bool
	Clear() bool
}

// CacheEntry is the stored wire format. Timestamp is millisecond epoch time
// assigned by the cache at write time, never by the caller. Version is stored
// for forward compatibility and is not enforced on read.
type CacheEntry struct {
	Value     json.RawMessage `json:"value"`
	Timestamp int64           `json:"timestamp"`
	Version   string          `json:"version"`
}
