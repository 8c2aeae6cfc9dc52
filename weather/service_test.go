package weather

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/cache"
	"github.com/shorecrew/shorecrew/logger"
	"github.com/shorecrew/shorecrew/store"
	"github.com/shorecrew/shorecrew/types"
)

type fakeProvider struct {
	calls   atomic.Int32
	fail    atomic.Bool
	reading types.WeatherReading
}

func (p *fakeProvider) Current(ctx context.Context, lat, lon float64) (*types.WeatherReading, error) {
	p.calls.Add(1)
	if p.fail.Load() {
		return nil, errors.New("upstream down")
	}
	r := p.reading
	r.Latitude = lat
	r.Longitude = lon
	return &r, nil
}

type serviceClock struct {
	now atomic.Pointer[time.Time]
}

func (c *serviceClock) Now() time.Time {
	return *c.now.Load()
}

func (c *serviceClock) Advance(d time.Duration) {
	next := c.now.Load().Add(d)
	c.now.Store(&next)
}

func newTestService(t *testing.T, provider types.WeatherProvider) (*Service, *serviceClock) {
	t.Helper()

	log := logger.NewZapWrapper(zap.NewNop())

	st := store.NewMemoryStore(log)
	require.NoError(t, st.Start())
	t.Cleanup(func() { st.Stop() })

	clock := &serviceClock{}
	start := time.Date(2026, 8, 27, 8, 0, 0, 0, time.UTC)
	clock.now.Store(&start)

	c := cache.New(st, log, "weathertest", nil).WithClock(clock.Now)

	svc := NewService(provider, c, log, &types.WeatherConfig{
		BaseURL: "http://unused",
		MaxAge:  600,
	})
	return svc, clock
}

func TestServiceFetchesOnceThenServesCached(t *testing.T) {
	p := &fakeProvider{reading: types.WeatherReading{TemperatureC: 15, WeatherCode: 1, Description: "Mainly clear"}}
	svc, _ := newTestService(t, p)

	first, err := svc.Current(context.Background(), 36.97, -122.03)
	require.NoError(t, err)
	assert.Equal(t, 15.0, first.TemperatureC)
	assert.False(t, first.Fallback)

	second, err := svc.Current(context.Background(), 36.97, -122.03)
	require.NoError(t, err)
	assert.Equal(t, first.TemperatureC, second.TemperatureC)
	assert.Equal(t, int32(1), p.calls.Load(), "second read must come from the cache")
}

func TestServiceRefetchesAfterMaxAge(t *testing.T) {
	p := &fakeProvider{reading: types.WeatherReading{TemperatureC: 12}}
	svc, clock := newTestService(t, p)

	_, err := svc.Current(context.Background(), 36.97, -122.03)
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)

	_, err = svc.Current(context.Background(), 36.97, -122.03)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestServicePrefersStaleOverFallback(t *testing.T) {
	p := &fakeProvider{reading: types.WeatherReading{TemperatureC: 19, WeatherCode: 0}}
	svc, clock := newTestService(t, p)

	_, err := svc.Current(context.Background(), 36.97, -122.03)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	p.fail.Store(true)

	reading, err := svc.Current(context.Background(), 36.97, -122.03)
	require.NoError(t, err)
	assert.True(t, reading.Stale)
	assert.False(t, reading.Fallback)
	assert.Equal(t, 19.0, reading.TemperatureC)
}

func TestServiceFallbackWhenEmptyAndUpstreamDown(t *testing.T) {
	p := &fakeProvider{}
	p.fail.Store(true)
	svc, _ := newTestService(t, p)

	reading, err := svc.Current(context.Background(), 36.97, -122.03)
	require.NoError(t, err)
	assert.True(t, reading.Fallback)
	assert.Equal(t, 36.97, reading.Latitude)
	assert.NotEmpty(t, reading.Description)
}

func TestServiceForBeachUsesOwnKey(t *testing.T) {
	p := &fakeProvider{reading: types.WeatherReading{TemperatureC: 14}}
	svc, _ := newTestService(t, p)

	b := types.Beach{Slug: "north-cove", Latitude: 36.9741, Longitude: -122.0308}

	_, err := svc.ForBeach(context.Background(), b)
	require.NoError(t, err)

	// A geo query at the same coordinates is a separate cache entry.
	_, err = svc.Current(context.Background(), b.Latitude, b.Longitude)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestServiceRefreshPopulatesBeachKeys(t *testing.T) {
	p := &fakeProvider{reading: types.WeatherReading{TemperatureC: 13}}
	svc, _ := newTestService(t, p)

	beaches := []types.Beach{
		{Slug: "north-cove", Latitude: 36.9741, Longitude: -122.0308},
		{Slug: "harbor-mouth", Latitude: 36.9608, Longitude: -122.0017},
	}

	svc.Refresh(context.Background(), beaches)
	assert.Equal(t, int32(2), p.calls.Load())

	// Served from the cache, no further upstream calls.
	for _, b := range beaches {
		reading, err := svc.ForBeach(context.Background(), b)
		require.NoError(t, err)
		assert.Equal(t, 13.0, reading.TemperatureC)
	}
	assert.Equal(t, int32(2), p.calls.Load())
}
