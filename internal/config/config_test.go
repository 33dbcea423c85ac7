package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorreltree/datalocker/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(os.TempDir(), "datalocker"), cfg.Root)
	assert.Equal(t, 30, cfg.HTTP.TimeoutSeconds)
	assert.True(t, cfg.Catalog.Enabled)
	assert.Empty(t, cfg.Metrics.Listen)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "root: /srv/locker\nhttp:\n  timeout_seconds: 5\n  user_agent: custom-agent\ncatalog:\n  enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/locker", cfg.Root)
	assert.Equal(t, 5, cfg.HTTP.TimeoutSeconds)
	assert.Equal(t, "custom-agent", cfg.HTTP.UserAgent)
	assert.False(t, cfg.Catalog.Enabled)
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  timeout_seconds: 0\n"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
