package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shorecrew/shorecrew/store"
	"github.com/shorecrew/shorecrew/types"
)

var customStoreCreators = make(map[string]types.CacheStoreCreator)

// RegisterCacheStore registers a custom store backend under name.
func RegisterCacheStore(name string, creator types.CacheStoreCreator) {
	customStoreCreators[name] = creator
}

// Manager owns the configured store backend and the cache built on it. The
// cache itself has no lifecycle; Start and Stop drive the backend.
type Manager struct {
	store types.CacheStore
	cache types.Cache
}

func NewManager(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager, knownKeys []string) (*Manager, error) {
	cacheConfig := config.GetConfig().Cache

	var st types.CacheStore
	var err error

	switch cacheConfig.Store {
	case "memory":
		st = store.NewMemoryStore(logger)
	case "sqlite":
		st, err = store.NewSQLiteStore(ctx, logger, cacheConfig)
	case "clover":
		st, err = store.NewCloverStore(ctx, logger, cacheConfig)
	case "redis":
		st, err = store.NewRedisStore(ctx, logger, cacheConfig)
	default:
		if creator, exists := customStoreCreators[cacheConfig.Store]; exists {
			st, err = creator(cacheConfig)
		} else {
			return nil, types.Errorf(types.ErrStoreTypeUnknown, "store: %s", cacheConfig.Store)
		}
	}

	if err != nil {
		return nil, err
	}

	core := New(st, logger, cacheConfig.Namespace, knownKeys)

	var impl types.Cache = core
	if metrics != nil {
		impl = newInstrumentedCache(metrics, core)
	}

	return &Manager{store: st, cache: impl}, nil
}

func (m *Manager) Cache() types.Cache {
	return m.cache
}

func (m *Manager) Start() error {
	return m.store.Start()
}

func (m *Manager) Stop() error {
	return m.store.Stop()
}

func (m *Manager) IsRunning() bool {
	return m.store.IsRunning()
}

// instrumentedCache records per-operation counters and latencies. Get results
// are labeled with the full lookup outcome so expired and corrupt reads can
// be told apart from plain misses.
type instrumentedCache struct {
	impl    *Cache
	metrics types.MetricsManager
}

func newInstrumentedCache(metrics types.MetricsManager, impl *Cache) types.Cache {
	return &instrumentedCache{
		impl:    impl,
		metrics: metrics,
	}
}

func (ic *instrumentedCache) Set(key string, value interface{}) bool {
	start := time.Now()
	ok := ic.impl.Set(key, value)
	ic.recordMetric("set", boolResult(ok), time.Since(start))
	return ok
}

func (ic *instrumentedCache) Get(key string) (json.RawMessage, bool) {
	start := time.Now()
	value, status := ic.impl.LookupMaxAge(key, 0)
	ic.recordMetric("get", status.String(), time.Since(start))
	return value, status == StatusHit
}

func (ic *instrumentedCache) GetMaxAge(key string, maxAge time.Duration) (json.RawMessage, bool) {
	start := time.Now()
	value, status := ic.impl.LookupMaxAge(key, maxAge)
	ic.recordMetric("get", status.String(), time.Since(start))
	return value, status == StatusHit
}

func (ic *instrumentedCache) Remove(key string) bool {
	start := time.Now()
	ok := ic.impl.Remove(key)
	ic.recordMetric("remove", boolResult(ok), time.Since(start))
	return ok
}

func (ic *instrumentedCache) Clear() bool {
	start := time.Now()
	ok := ic.impl.Clear()
	ic.recordMetric("clear", boolResult(ok), time.Since(start))
	return ok
}

func (ic *instrumentedCache) recordMetric(operation, result string, duration time.Duration) {
	ic.metrics.Counter("cache_operations_total", map[string]string{
		"operation": operation,
		"result":    result,
	}).Inc()

	ic.metrics.Histogram("cache_operation_duration_seconds",
		[]float64{0.0001, 0.001, 0.01, 0.1, 1.0},
		map[string]string{"operation": operation},
	).Observe(duration.Seconds())
}

func boolResult(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
