package jdwpconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, 2, cfg.Summarize.MaxDepth)
	require.Equal(t, 10*time.Second, cfg.Attach.DialTimeout)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 10, cfg.Summarize.MaxCollectionItems)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
log:
  level: debug
  trace: true
attach:
  dial_timeout: 5s
summarize:
  max_depth: 4
  max_collection_items: 20
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.True(t, cfg.Log.Trace)
	require.Equal(t, 5*time.Second, cfg.Attach.DialTimeout)
	require.Equal(t, 4, cfg.Summarize.MaxDepth)
	require.Equal(t, 20, cfg.Summarize.MaxCollectionItems)
	require.True(t, cfg.Summarize.AutoExpandStrings)
}
