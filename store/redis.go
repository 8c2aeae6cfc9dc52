package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/types"
	"github.com/shorecrew/shorecrew/utils"
)

type RedisConfig struct {
	Host         string        `yaml:"host" json:"host"`
	Port         int           `yaml:"port" json:"port"`
	Password     string        `yaml:"password" json:"password"`
	DB           int           `yaml:"db" json:"db"`
	PoolSize     int           `yaml:"pool_size" json:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// RedisStore backs the cache with a redis instance that may be shared with
// other applications; the cache's namespacing and selective Clear keep
// foreign keys untouched. No redis-side TTL is set: expiry is decided by the
// reader, not the store.
type RedisStore struct {
	ctx    context.Context
	logger types.Logger
	config *RedisConfig
	client *redis.Client
	state  atomic.Value
}

func NewRedisStore(ctx context.Context, logger types.Logger, config *types.CacheConfig) (*RedisStore, error) {
	redisConfig := &RedisConfig{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	if config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, redisConfig); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal redis store config")
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", redisConfig.Host, redisConfig.Port),
		Password:     redisConfig.Password,
		DB:           redisConfig.DB,
		PoolSize:     redisConfig.PoolSize,
		DialTimeout:  redisConfig.DialTimeout,
		ReadTimeout:  redisConfig.ReadTimeout,
		WriteTimeout: redisConfig.WriteTimeout,
	})

	s := &RedisStore{
		ctx:    ctx,
		logger: logger,
		config: redisConfig,
		client: client,
	}
	s.state.Store(StateStopped)
	return s, nil
}

func (s *RedisStore) RawGet(key string) (string, bool) {
	result, err := s.client.Get(s.ctx, key).Result()
	if err != nil {
		if types.IsError(err, redis.Nil) {
			return "", false
		}
		s.logger.Error("redis store read failed",
			zap.String("key", key), zap.Error(err))
		return "", false
	}
	return result, true
}

func (s *RedisStore) RawSet(key string, serialized string) bool {
	if err := s.client.Set(s.ctx, key, serialized, 0).Err(); err != nil {
		s.logger.Error("redis store write failed",
			zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *RedisStore) RawRemove(key string) bool {
	if err := s.client.Del(s.ctx, key).Err(); err != nil {
		s.logger.Error("redis store delete failed",
			zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *RedisStore) Start() error {
	if !s.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	defer func() {
		if s.getState() == StateStarting {
			s.setState(StateRunning)
		}
	}()

	pingCtx, cancel := context.WithTimeout(s.ctx, s.config.DialTimeout)
	defer cancel()

	if err := s.client.Ping(pingCtx).Err(); err != nil {
		s.setState(StateStopped)
		return types.WrapError(err, "failed to connect to redis")
	}

	s.logger.Info("Redis store started",
		zap.String("host", s.config.Host),
		zap.Int("port", s.config.Port),
		zap.Int("db", s.config.DB))
	return nil
}

func (s *RedisStore) Stop() error {
	if !s.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		s.setState(StateStopped)
	}()

	if err := s.client.Close(); err != nil {
		return types.WrapError(err, "failed to close redis client")
	}

	s.logger.Info("Redis store stopped gracefully")
	return nil
}

func (s *RedisStore) IsRunning() bool {
	return s.getState() == StateRunning
}

func (s *RedisStore) getState() State {
	return s.state.Load().(State)
}

func (s *RedisStore) setState(newState State) bool {
	currentState := s.getState()
	return s.state.CompareAndSwap(currentState, newState)
}

func (s *RedisStore) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(from, to)
}
