package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewServiceWithNullWeatherSection(t *testing.T) {
	// An explicit null overrides the default section with a nil pointer;
	// construction must fall back to defaults instead of panicking.
	path := writeConfig(t, `
name: "shorecrew"
version: "1.0.0"
cache:
  store: "memory"
weather: null
`)

	svc, err := NewService(context.Background(), path)
	require.NoError(t, err)
	assert.NotNil(t, svc.weatherSvc)
}

func TestServiceLifecycle(t *testing.T) {
	path := writeConfig(t, `
name: "shorecrew"
version: "1.0.0"
server:
  http:
    host: "127.0.0.1"
    port: 0
cache:
  store: "memory"
`)

	svc, err := NewService(context.Background(), path)
	require.NoError(t, err)

	assert.False(t, svc.IsRunning())
	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())
	assert.Error(t, svc.Start())

	require.NoError(t, svc.Stop())
	assert.False(t, svc.IsRunning())
	assert.Error(t, svc.Stop())
}
