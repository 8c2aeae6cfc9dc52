package types

import (
	"context"
	"time"
)

type WeatherProvider interface {
	Current(ctx context.Context, lat, lon float64) (*WeatherReading, error)
}

// WeatherReading is a single observation as served to clients. Fallback marks
// synthetic data returned when both the cache and the upstream provider came
// up empty; Stale marks a cached reading older than the caller's freshness
// bound that was still preferred over synthetic data.
type WeatherReading struct {
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	TemperatureC  float64   `json:"temperature_c"`
	WindSpeedKmh  float64   `json:"wind_speed_kmh"`
	WindDirection float64   `json:"wind_direction"`
	WeatherCode   int       `json:"weather_code"`
	Description   string    `json:"description"`
	ObservedAt    time.Time `json:"observed_at"`
	Fallback      bool      `json:"fallback,omitempty"`
	Stale         bool      `json:"stale,omitempty"`
}
