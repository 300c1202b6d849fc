package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadPartialOverridesOnlyNamedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[renderer]
tile_size = 16
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(16), cfg.Renderer.TileSize)
	require.Equal(t, Default().Renderer.MaxLightsPerTile, cfg.Renderer.MaxLightsPerTile)
	require.Equal(t, Default().Allocator, cfg.Allocator)
}
