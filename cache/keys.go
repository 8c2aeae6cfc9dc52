package cache

import (
	"fmt"
)

// Application keys. These are the only keys Clear is allowed to remove.
const (
	KeySelectedBeach = "beach:selected"
	KeyLastLocation  = "location:last"
	KeyCrewRoster    = "crew:roster"
	KeyCleanupLog    = "crew:cleanups"
)

// WeatherBeachKey is the cache key for a catalog beach's weather.
func WeatherBeachKey(slug string) string {
	return "weather:beach:" + slug
}

// WeatherGeoKey is the cache key for weather at arbitrary coordinates,
// rounded to ~100m so nearby requests share an entry. Geo keys are not part
// of the known set; stale ones are evicted lazily on their next read.
func WeatherGeoKey(lat, lon float64) string {
	return fmt.Sprintf("weather:geo:%.3f,%.3f", lat, lon)
}

// KnownKeys returns the fixed key set owned by the application: the static
// keys plus one weather key per catalog beach.
func KnownKeys(beachSlugs []string) []string {
	keys := []string{
		KeySelectedBeach,
		KeyLastLocation,
		KeyCrewRoster,
		KeyCleanupLog,
	}
	for _, slug := range beachSlugs {
		keys = append(keys, WeatherBeachKey(slug))
	}
	return keys
}
