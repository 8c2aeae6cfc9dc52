package store

import (
	"context"
	"database/sql"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/types"
	"github.com/shorecrew/shorecrew/utils"
)

type SQLiteConfig struct {
	Path string `yaml:"path" json:"path"`
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// SQLiteStore is the durable backend: entries survive process restarts.
type SQLiteStore struct {
	ctx    context.Context
	logger types.Logger
	config *SQLiteConfig
	db     *sql.DB
	state  atomic.Value
}

func NewSQLiteStore(ctx context.Context, logger types.Logger, config *types.CacheConfig) (*SQLiteStore, error) {
	sqliteConfig := &SQLiteConfig{
		Path: "shorecrew.db",
	}

	if config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, sqliteConfig); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal sqlite store config")
		}
	}

	db, err := sql.Open("sqlite3", sqliteConfig.Path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, types.WrapError(err, "failed to open sqlite store")
	}

	// SQLite serializes writes; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, types.WrapError(err, "failed to create cache table")
	}

	s := &SQLiteStore{
		ctx:    ctx,
		logger: logger,
		config: sqliteConfig,
		db:     db,
	}
	s.state.Store(StateStopped)
	return s, nil
}

func (s *SQLiteStore) RawGet(key string) (string, bool) {
	var value string
	err := s.db.QueryRowContext(s.ctx,
		"SELECT value FROM cache_entries WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		s.logger.Error("sqlite store read failed",
			zap.String("key", key), zap.Error(err))
		return "", false
	}
	return value, true
}

func (s *SQLiteStore) RawSet(key string, serialized string) bool {
	_, err := s.db.ExecContext(s.ctx,
		"INSERT INTO cache_entries (key, value) VALUES (?, ?) "+
			"ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, serialized)
	if err != nil {
		s.logger.Error("sqlite store write failed",
			zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *SQLiteStore) RawRemove(key string) bool {
	_, err := s.db.ExecContext(s.ctx,
		"DELETE FROM cache_entries WHERE key = ?", key)
	if err != nil {
		s.logger.Error("sqlite store delete failed",
			zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *SQLiteStore) Start() error {
	if !s.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	defer func() {
		if s.getState() == StateStarting {
			s.setState(StateRunning)
		}
	}()

	if err := s.db.PingContext(s.ctx); err != nil {
		s.setState(StateStopped)
		return types.WrapError(err, "sqlite store unavailable")
	}

	s.logger.Info("SQLite store started", zap.String("path", s.config.Path))
	return nil
}

func (s *SQLiteStore) Stop() error {
	if !s.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		s.setState(StateStopped)
	}()

	if err := s.db.Close(); err != nil {
		return types.WrapError(err, "failed to close sqlite store")
	}

	s.logger.Info("SQLite store stopped gracefully")
	return nil
}

func (s *SQLiteStore) IsRunning() bool {
	return s.getState() == StateRunning
}

func (s *SQLiteStore) getState() State {
	return s.state.Load().(State)
}

func (s *SQLiteStore) setState(newState State) bool {
	currentState := s.getState()
	return s.state.CompareAndSwap(currentState, newState)
}

func (s *SQLiteStore) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(from, to)
}
