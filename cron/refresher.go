package cron

import (
	"context"

	"github.com/shorecrew/shorecrew/types"
)

const WeatherRefreshJob = "weather_refresh"

type weatherRefresher interface {
	Refresh(ctx context.Context, beaches []types.Beach)
}

// RegisterWeatherRefresh schedules a periodic refetch of every beach's
// weather, so reads usually stay inside their freshness bound without
// hitting the upstream.
func RegisterWeatherRefresh(m *Manager, svc weatherRefresher, beaches []types.Beach, spec string) error {
	return m.Add(WeatherRefreshJob, spec, func(ctx context.Context) {
		svc.Refresh(ctx, beaches)
	})
}
