package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/logger"
)

func newTestMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(logger.NewZapWrapper(zap.NewNop()))
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Stop() })
	return s
}

func TestMemoryStoreSetGetRemove(t *testing.T) {
	s := newTestMemoryStore(t)

	_, ok := s.RawGet("k")
	assert.False(t, ok)

	require.True(t, s.RawSet("k", "v1"))
	got, ok := s.RawGet("k")
	require.True(t, ok)
	assert.Equal(t, "v1", got)

	require.True(t, s.RawSet("k", "v2"))
	got, _ = s.RawGet("k")
	assert.Equal(t, "v2", got)

	require.True(t, s.RawRemove("k"))
	_, ok = s.RawGet("k")
	assert.False(t, ok)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	s := newTestMemoryStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.RawSet("shared", "value")
				s.RawGet("shared")
			}
		}()
	}
	wg.Wait()

	got, ok := s.RawGet("shared")
	require.True(t, ok)
	assert.Equal(t, "value", got)
}

func TestMemoryStoreLifecycle(t *testing.T) {
	s := NewMemoryStore(logger.NewZapWrapper(zap.NewNop()))

	assert.False(t, s.IsRunning())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())

	s.RawSet("k", "v")
	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())

	// Stop drops all entries.
	assert.Equal(t, 0, s.Len())
}
