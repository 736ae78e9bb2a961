package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadGuard(t *testing.T) {
	g := &readGuard{limit: 3}
	require.NoError(t, g.observe(false))
	require.NoError(t, g.observe(false))
	require.NoError(t, g.observe(true), "a good frame resets the run")
	require.NoError(t, g.observe(false))
	require.NoError(t, g.observe(false))
	assert.Error(t, g.observe(false))
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "espvision.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"camera": 2, "hist_bins": 32, "telemetry_addr": "127.0.0.1:9000"}`), 0o644))

	require.NoError(t, flag.Set("config", path))
	require.NoError(t, flag.Set("hist-bins", "8"))
	defer func() {
		flag.Set("config", "")
		flag.Set("hist-bins", "16")
	}()

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Camera, "file value kept")
	assert.Equal(t, "127.0.0.1:9000", cfg.TelemetryAddr)
	assert.Equal(t, 8, cfg.HistBins, "explicit flag wins")
	assert.Equal(t, 30, cfg.PollIntervalMS, "default untouched")
}

func TestLoadConfigBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))

	require.NoError(t, flag.Set("config", path))
	defer flag.Set("config", "")

	_, err := loadConfig()
	assert.Error(t, err)
}
