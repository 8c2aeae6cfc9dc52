package store

import (
	"context"
	"sync/atomic"

	"github.com/ostafen/clover"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/types"
	"github.com/shorecrew/shorecrew/utils"
)

const cloverCollection = "cache_entries"

type CloverConfig struct {
	Path string `yaml:"path" json:"path"`
}

// CloverStore keeps entries in a clover document collection, one document per
// key. An empty path opens an in-memory database.
type CloverStore struct {
	ctx    context.Context
	logger types.Logger
	config *CloverConfig
	db     *clover.DB
	state  atomic.Value
}

func NewCloverStore(ctx context.Context, logger types.Logger, config *types.CacheConfig) (*CloverStore, error) {
	cloverConfig := &CloverConfig{}

	if config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, cloverConfig); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal clover store config")
		}
	}

	db, err := clover.Open(cloverConfig.Path)
	if err != nil {
		return nil, types.WrapError(err, "failed to open clover store")
	}

	exists, err := db.HasCollection(cloverCollection)
	if err != nil {
		db.Close()
		return nil, types.WrapError(err, "failed to check collection existence")
	}
	if !exists {
		if err := db.CreateCollection(cloverCollection); err != nil {
			db.Close()
			return nil, types.WrapError(err, "failed to create collection")
		}
	}

	s := &CloverStore{
		ctx:    ctx,
		logger: logger,
		config: cloverConfig,
		db:     db,
	}
	s.state.Store(StateStopped)
	return s, nil
}

func (s *CloverStore) RawGet(key string) (string, bool) {
	doc, err := s.db.Query(cloverCollection).
		Where(clover.Field("key").Eq(key)).
		FindFirst()
	if err != nil {
		s.logger.Error("clover store read failed",
			zap.String("key", key), zap.Error(err))
		return "", false
	}
	if doc == nil {
		return "", false
	}

	value, ok := doc.Get("value").(string)
	if !ok {
		s.logger.Error("clover store document has no string value",
			zap.String("key", key))
		return "", false
	}
	return value, true
}

func (s *CloverStore) RawSet(key string, serialized string) bool {
	existing, err := s.db.Query(cloverCollection).
		Where(clover.Field("key").Eq(key)).
		FindFirst()
	if err != nil {
		s.logger.Error("clover store lookup failed",
			zap.String("key", key), zap.Error(err))
		return false
	}

	if existing != nil {
		err = s.db.Query(cloverCollection).
			Where(clover.Field("key").Eq(key)).
			Update(map[string]interface{}{"value": serialized})
		if err != nil {
			s.logger.Error("clover store update failed",
				zap.String("key", key), zap.Error(err))
			return false
		}
		return true
	}

	doc := clover.NewDocument()
	doc.Set("key", key)
	doc.Set("value", serialized)

	if _, err := s.db.InsertOne(cloverCollection, doc); err != nil {
		s.logger.Error("clover store insert failed",
			zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *CloverStore) RawRemove(key string) bool {
	err := s.db.Query(cloverCollection).
		Where(clover.Field("key").Eq(key)).
		Delete()
	if err != nil {
		s.logger.Error("clover store delete failed",
			zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *CloverStore) Start() error {
	if !s.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	defer func() {
		if s.getState() == StateStarting {
			s.setState(StateRunning)
		}
	}()

	s.logger.Info("Clover store started", zap.String("path", s.config.Path))
	return nil
}

func (s *CloverStore) Stop() error {
	if !s.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		s.setState(StateStopped)
	}()

	if err := s.db.Close(); err != nil {
		return types.WrapError(err, "failed to close clover store")
	}

	s.logger.Info("Clover store stopped gracefully")
	return nil
}

func (s *CloverStore) IsRunning() bool {
	return s.getState() == StateRunning
}

func (s *CloverStore) getState() State {
	return s.state.Load().(State)
}

func (s *CloverStore) setState(newState State) bool {
	currentState := s.getState()
	return s.state.CompareAndSwap(currentState, newState)
}

func (s *CloverStore) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(from, to)
}
