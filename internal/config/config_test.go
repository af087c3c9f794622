package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, ":8090", cfg.ListenAddr)
	assert.Equal(t, 5, cfg.RefreshIntervalMin)
	assert.Equal(t, 5*time.Minute, cfg.RefreshInterval())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"listen_addr": "127.0.0.1:9999",
		"data_dir": "/tmp/goldrates-test",
		"attempt_timeout_sec": 20,
		"batch_size": 5,
		"batch_delay_ms": 250,
		"proxies": ["https://p1.example/?u={url}", "https://p2.example/get?url={url}"]
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
	assert.Equal(t, 20*time.Second, cfg.AttemptTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.BatchDelay())
	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, filepath.Join("/tmp/goldrates-test", "goldrates.db"), cfg.DBPath())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GOLDRATES_LISTEN", "0.0.0.0:7001")
	t.Setenv("GOLDRATES_REFRESH_MIN", "15")
	t.Setenv("GOLDRATES_DEBUG", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7001", cfg.ListenAddr)
	assert.Equal(t, 15, cfg.RefreshIntervalMin)
	assert.True(t, cfg.Debug)
}

func TestLoadRejectsBadProxyTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"proxies": ["https://p1.example/?u={url}", "https://p2.example/no-placeholder"]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsSingleProxy(t *testing.T) {
	// The fallback chain needs at least two candidates to be a chain.
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"proxies": ["https://p1.example/?u={url}"]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
