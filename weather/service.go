package weather

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/shorecrew/shorecrew/cache"
	"github.com/shorecrew/shorecrew/types"
)

const defaultMaxAge = 10 * time.Minute

// Service answers weather queries from the cache first and falls back to the
// upstream provider. It never returns an error: when both the cache and the
// provider come up empty a synthetic reading is served instead, flagged as
// Fallback. A cached reading past the freshness bound is preferred over the
// synthetic one and flagged as Stale.
type Service struct {
	provider types.WeatherProvider
	cache    types.Cache
	logger   types.Logger
	maxAge   time.Duration
	group    singleflight.Group
}

func NewService(provider types.WeatherProvider, c types.Cache, logger types.Logger, config *types.WeatherConfig) *Service {
	maxAge := time.Duration(config.MaxAge) * time.Second
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}

	return &Service{
		provider: provider,
		cache:    c,
		logger:   logger,
		maxAge:   maxAge,
	}
}

// Current serves conditions for arbitrary coordinates.
func (s *Service) Current(ctx context.Context, lat, lon float64) (*types.WeatherReading, error) {
	return s.lookup(ctx, cache.WeatherGeoKey(lat, lon), lat, lon)
}

// ForBeach serves conditions for a catalog beach under its own cache key, so
// the periodic refresher and ad hoc geo queries do not collide.
func (s *Service) ForBeach(ctx context.Context, b types.Beach) (*types.WeatherReading, error) {
	return s.lookup(ctx, cache.WeatherBeachKey(b.Slug), b.Latitude, b.Longitude)
}

// Refresh fetches fresh readings for every given beach and stores them,
// regardless of what the cache already holds. Used by the cron refresher.
func (s *Service) Refresh(ctx context.Context, beaches []types.Beach) {
	for _, b := range beaches {
		reading, err := s.provider.Current(ctx, b.Latitude, b.Longitude)
		if err != nil {
			s.logger.Warn("Weather refresh failed for beach",
				zap.String("slug", b.Slug),
				zap.Error(err))
			continue
		}

		if !s.cache.Set(cache.WeatherBeachKey(b.Slug), reading) {
			s.logger.Warn("Failed to cache refreshed weather",
				zap.String("slug", b.Slug))
		}
	}
}

func (s *Service) lookup(ctx context.Context, key string, lat, lon float64) (*types.WeatherReading, error) {
	// Snapshot before the bounded read: an expired entry is evicted the
	// moment a freshness-bounded read touches it, and the snapshot is what
	// degraded requests fall back to.
	stale, hasStale := cache.GetAs[types.WeatherReading](s.cache, key)
	if hasStale {
		if reading, ok := cache.GetMaxAgeAs[types.WeatherReading](s.cache, key, s.maxAge); ok {
			return &reading, nil
		}
	}

	// Concurrent misses on the same key collapse into a single upstream
	// fetch.
	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		if reading, ok := cache.GetMaxAgeAs[types.WeatherReading](s.cache, key, s.maxAge); ok {
			return &reading, nil
		}

		reading, err := s.provider.Current(ctx, lat, lon)
		if err == nil {
			if !s.cache.Set(key, reading) {
				s.logger.Warn("Failed to cache weather reading", zap.String("key", key))
			}
			return reading, nil
		}

		s.logger.Warn("Upstream weather fetch failed, degrading",
			zap.String("key", key),
			zap.Error(err))

		if hasStale {
			stale.Stale = true
			return &stale, nil
		}

		return fallbackReading(lat, lon), nil
	})
	if err != nil {
		// The flight function never fails, but keep the contract honest.
		return fallbackReading(lat, lon), nil
	}

	return result.(*types.WeatherReading), nil
}

// fallbackReading is the synthetic observation served when nothing better is
// available. Mild conditions, clearly flagged.
func fallbackReading(lat, lon float64) *types.WeatherReading {
	return &types.WeatherReading{
		Latitude:      lat,
		Longitude:     lon,
		TemperatureC:  17.0,
		WindSpeedKmh:  12.0,
		WindDirection: 270,
		WeatherCode:   2,
		Description:   DescribeWeatherCode(2),
		ObservedAt:    time.Now().UTC(),
		Fallback:      true,
	}
}
