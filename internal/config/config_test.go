package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, DefaultConfig().Yamux.Validate())
}

func TestYamuxConfigRejectsInvertedKeepAlive(t *testing.T) {
	cfg := DefaultYamuxConfig()
	cfg.KeepAliveInterval, cfg.KeepAliveTimeout = cfg.KeepAliveTimeout, cfg.KeepAliveInterval/2
	require.Error(t, cfg.Validate())
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	partial := map[string]any{
		"yamux": map[string]any{
			"maxConcurrentStreams": 42,
		},
	}
	buf, err := json.Marshal(partial)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, buf, 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 42, cfg.Yamux.MaxConcurrentStreams)
	// Untouched fields keep their defaults.
	require.Equal(t, DefaultYamuxConfig().InitialWindowSize, cfg.Yamux.InitialWindowSize)
}
