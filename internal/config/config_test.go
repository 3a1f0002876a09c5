package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Dispatch.Workers)
	assert.Equal(t, 45, cfg.Dispatch.SourceTimeoutSec)
	assert.Equal(t, 3, cfg.HTTP.MaxRetries)
	assert.Equal(t, "data/processed", cfg.Output.Dir)
	assert.Equal(t, "opportunities.json", cfg.Output.SnapshotFile)
	assert.Equal(t, 8081, cfg.Server.Port)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dispatch:
  workers: 4
output:
  dir: /tmp/out
logging:
  development: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Dispatch.Workers)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
	assert.True(t, cfg.Logging.Development)
	// Untouched keys keep their defaults.
	assert.Equal(t, 45, cfg.Dispatch.SourceTimeoutSec)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dispatch:
  workers: 0
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
