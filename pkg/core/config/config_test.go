package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.ListenAddr)
	assert.Equal(t, 10*time.Minute, cfg.QuickTTL)
	assert.Equal(t, 10, cfg.MaxConcurrentFetches)
}

func TestLoad_YamlThenEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "research.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":9001\"\nmin_archive_bytes: 2048\nfnet_base_url: http://yaml.example\n"), 0o644))
	t.Setenv("RESEARCH_FNET_BASE_URL", "http://env.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9001", cfg.ListenAddr)
	assert.Equal(t, 2048, cfg.MinArchiveBytes)
	// Environment wins over the file.
	assert.Equal(t, "http://env.example", cfg.FNETBaseURL)
}

func TestLoad_ClampsConcurrency(t *testing.T) {
	t.Setenv("RESEARCH_MAX_CONCURRENT", "500")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxConcurrentFetches)
}
