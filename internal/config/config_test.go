package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 7, cfg.Memory.WorkingCapacity)
	assert.Equal(t, 5*time.Minute, cfg.Memory.WorkingTTL)
	assert.Equal(t, 0.7, cfg.Memory.ImportanceThreshold)
	assert.Equal(t, 10, cfg.Session.FlushEvery)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path: /tmp/x.db
memory:
  working_capacity: 9
  working_ttl: 2m
log:
  level: debug
`), 0o644))

	t.Setenv(EnvPrefix+"WORKING_CAPACITY", "11")
	t.Setenv(EnvPrefix+"LOG_FORMAT", "console")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 11, cfg.Memory.WorkingCapacity, "env overrides file")
	assert.Equal(t, 2*time.Minute, cfg.Memory.WorkingTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 0.7, cfg.Memory.ImportanceThreshold, "unset keys keep defaults")
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv(EnvPrefix+"IMPORTANCE_THRESHOLD", "1.5")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadBadEnvNumber(t *testing.T) {
	t.Setenv(EnvPrefix+"WORKING_CAPACITY", "many")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Memory.WorkingCapacity = 0
	cfg.Retrieval.Ranker = "vector"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "working_capacity")
	assert.Contains(t, err.Error(), "ranker")
}
