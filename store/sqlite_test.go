package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/logger"
	"github.com/shorecrew/shorecrew/types"
)

func newTestSQLiteStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), logger.NewZapWrapper(zap.NewNop()), &types.CacheConfig{
		Store:  "sqlite",
		Config: &SQLiteConfig{Path: path},
	})
	require.NoError(t, err)
	require.NoError(t, s.Start())
	return s
}

func TestSQLiteStoreSetGetRemove(t *testing.T) {
	s := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "cache.db"))
	defer s.Stop()

	_, ok := s.RawGet("k")
	assert.False(t, ok)

	require.True(t, s.RawSet("k", `{"value":1}`))
	got, ok := s.RawGet("k")
	require.True(t, ok)
	assert.Equal(t, `{"value":1}`, got)

	require.True(t, s.RawSet("k", `{"value":2}`))
	got, _ = s.RawGet("k")
	assert.Equal(t, `{"value":2}`, got)

	require.True(t, s.RawRemove("k"))
	_, ok = s.RawGet("k")
	assert.False(t, ok)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s := newTestSQLiteStore(t, path)
	require.True(t, s.RawSet("persistent", "survives"))
	require.NoError(t, s.Stop())

	reopened := newTestSQLiteStore(t, path)
	defer reopened.Stop()

	got, ok := reopened.RawGet("persistent")
	require.True(t, ok)
	assert.Equal(t, "survives", got)
}

func TestSQLiteStoreFailsAfterClose(t *testing.T) {
	s := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, s.Stop())

	// A closed store degrades to false results, it does not panic.
	assert.False(t, s.RawSet("k", "v"))
	_, ok := s.RawGet("k")
	assert.False(t, ok)
}
