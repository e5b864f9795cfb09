package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
log_level: debug
validity: 720h
extract_timeout: 30s
channel:
  target: http://as.internal:8080/events
  source: rvps/prod
cache:
  backend: disk
  dir: /var/lib/refvald
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, Duration(720*time.Hour), cfg.Validity)
	assert.Equal(t, Duration(30*time.Second), cfg.ExtractTimeout)
	assert.Equal(t, "http://as.internal:8080/events", cfg.Channel.Target)
	assert.Equal(t, "rvps/prod", cfg.Channel.Source)
	assert.Equal(t, "disk", cfg.Cache.Backend)
	assert.Equal(t, "/var/lib/refvald", cfg.Cache.Dir)
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "memory", cfg.Cache.Backend)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Backend = "redis"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Cache = CacheConfig{Backend: "disk"}
	assert.Error(t, cfg.Validate(), "disk backend requires a directory")

	cfg = DefaultConfig()
	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
