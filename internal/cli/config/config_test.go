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
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultWatchInterval, cfg.WatchInterval)
	require.NotNil(t, cfg.PrettyJSON)
	assert.True(t, *cfg.PrettyJSON)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	require.NoError(t, os.WriteFile(path, []byte("baseURL: http://judge:9000\nwatchInterval: 250ms\nprettyJSON: false\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://judge:9000", cfg.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.WatchInterval)
	assert.False(t, *cfg.PrettyJSON)
}
