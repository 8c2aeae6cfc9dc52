package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shorecrew/shorecrew/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
name: "shorecrew"
version: "1.0.0"
cache:
  store: "memory"
`

func TestLoaderMergesDefaults(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	config, err := NewLoader().LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "shorecrew", config.Name)
	assert.Equal(t, "memory", config.Cache.Store)

	// Unspecified sections keep their defaults.
	assert.Equal(t, 8080, config.Server.HTTP.Port)
	assert.Equal(t, "https://api.open-meteo.com", config.Weather.BaseURL)
	assert.Equal(t, 600, config.Weather.MaxAge)
	assert.Equal(t, 54, config.Notify.PingInterval)
	assert.False(t, config.Notify.Enabled)
}

func TestLoaderOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
name: "shorecrew"
version: "2.0.0"
cache:
  store: "sqlite"
  namespace: "coastal"
weather:
  timeout: 5
  max_age: 120
notify:
  enabled: true
  port: 9090
`)

	config, err := NewLoader().LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", config.Cache.Store)
	assert.Equal(t, "coastal", config.Cache.Namespace)
	assert.Equal(t, 5, config.Weather.Timeout)
	assert.Equal(t, 120, config.Weather.MaxAge)
	assert.True(t, config.Notify.Enabled)
	assert.Equal(t, 9090, config.Notify.Port)

	// Fields the override did not touch survive.
	assert.Equal(t, 2, config.Weather.Retries)
	assert.Equal(t, "/events", config.Notify.Path)
}

func TestLoaderRejectsEmptyPath(t *testing.T) {
	_, err := NewLoader().LoadFromFile("")
	require.Error(t, err)
	assert.True(t, types.IsError(err, types.ErrConfigNotFound))
}

func TestLoaderRejectsMissingFile(t *testing.T) {
	_, err := NewLoader().LoadFromFile(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoaderRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "name: [unclosed")

	_, err := NewLoader().LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoaderValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{
			name: "unknown cache store",
			content: `
name: "shorecrew"
version: "1.0.0"
cache:
  store: "etcd"
`,
		},
		{
			name: "missing name",
			content: `
version: "1.0.0"
cache:
  store: "memory"
`,
		},
		{
			name: "retries out of range",
			content: `
name: "shorecrew"
version: "1.0.0"
cache:
  store: "memory"
weather:
  retries: 50
`,
		},
		{
			name: "port out of range",
			content: `
name: "shorecrew"
version: "1.0.0"
cache:
  store: "memory"
server:
  http:
    port: 99999
`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			_, err := NewLoader().LoadFromFile(path)
			assert.Error(t, err)
		})
	}
}

func TestConfigurationManagerLifecycle(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cm, err := NewConfigurationManager(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, cm.GetConfig())

	assert.False(t, cm.IsRunning())
	require.NoError(t, cm.Start())
	assert.True(t, cm.IsRunning())
	assert.Error(t, cm.Start())

	require.NoError(t, cm.Stop())
	assert.False(t, cm.IsRunning())
	assert.Nil(t, cm.GetConfig())
}

func TestConfigurationManagerFailsOnBadPath(t *testing.T) {
	_, err := NewConfigurationManager(context.Background(), filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
