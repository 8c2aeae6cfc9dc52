package cache

import (
	"time"

	"github.com/shorecrew/shorecrew/types"
	"github.com/shorecrew/shorecrew/utils"
)

// GetAs reads key and decodes the value into T. Decode failures are treated
// as absent, matching the cache's own handling of corrupt entries.
func GetAs[T any](c types.Cache, key string) (T, bool) {
	var zero T

	raw, ok := c.Get(key)
	if !ok {
		return zero, false
	}

	var value T
	if err := utils.Unmarshal(raw, &value); err != nil {
		return zero, false
	}
	return value, true
}

// GetMaxAgeAs is GetAs with a reader-side freshness bound.
func GetMaxAgeAs[T any](c types.Cache, key string, maxAge time.Duration) (T, bool) {
	var zero T

	raw, ok := c.GetMaxAge(key, maxAge)
	if !ok {
		return zero, false
	}

	var value T
	if err := utils.Unmarshal(raw, &value); err != nil {
		return zero, false
	}
	return value, true
}
