// Package config loads a TOML tuning file for the allocator and renderer:
// pool sizing, cluster/tile dimensions and shadow cascade parameters. No
// package in this module calls Load; the allocator and renderer use their
// own constants, whose values Default repeats.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima/engine/core"
)

// AllocatorConfig holds pool-sizing values for engine/gpu/allocator; the
// allocator itself reads its own constants, not this struct.
type AllocatorConfig struct {
	// DedicatedThresholdDivisor divides a pool's size to get the
	// allocation-size cutoff above which a request bypasses pooling.
	DedicatedThresholdDivisor uint64 `toml:"dedicated_threshold_divisor"`
	// LargePoolSize is the fixed pool size used for heaps over 1 GiB.
	LargePoolSize uint64 `toml:"large_pool_size"`
}

// RendererConfig tunes engine/gpu/renderer.
type RendererConfig struct {
	TileSize          uint32  `toml:"tile_size"`
	MaxLightsPerTile  uint32  `toml:"max_lights_per_tile"`
	ShadowCascades    uint32  `toml:"shadow_cascades"`
	CascadeSplitLambda float64 `toml:"cascade_split_lambda"`
	ShadowMapSize     uint32  `toml:"shadow_map_size"`
}

// Config is the top-level document loaded from a single TOML file.
type Config struct {
	Allocator AllocatorConfig `toml:"allocator"`
	Renderer  RendererConfig  `toml:"renderer"`
}

// Default mirrors the constants spec.md hardcodes, so a missing config
// file still produces a working engine.
func Default() Config {
	return Config{
		Allocator: AllocatorConfig{
			DedicatedThresholdDivisor: 8,
			LargePoolSize:             128 * 1024 * 1024,
		},
		Renderer: RendererConfig{
			TileSize:           32,
			MaxLightsPerTile:   256,
			ShadowCascades:     4,
			CascadeSplitLambda: 0.85,
			ShadowMapSize:      2048,
		},
	}
}

// Load reads and decodes path, falling back to Default() values for any
// field toml.Unmarshal leaves zero (so a partial config file only
// overrides what it names).
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			core.LogWarn("config: %s not found, using defaults", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if cfg.Renderer.TileSize == 0 {
		cfg.Renderer.TileSize = Default().Renderer.TileSize
	}
	if cfg.Renderer.MaxLightsPerTile == 0 {
		cfg.Renderer.MaxLightsPerTile = Default().Renderer.MaxLightsPerTile
	}
	if cfg.Renderer.ShadowCascades == 0 {
		cfg.Renderer.ShadowCascades = Default().Renderer.ShadowCascades
	}
	if cfg.Renderer.CascadeSplitLambda == 0 {
		cfg.Renderer.CascadeSplitLambda = Default().Renderer.CascadeSplitLambda
	}
	if cfg.Renderer.ShadowMapSize == 0 {
		cfg.Renderer.ShadowMapSize = Default().Renderer.ShadowMapSize
	}
	if cfg.Allocator.DedicatedThresholdDivisor == 0 {
		cfg.Allocator.DedicatedThresholdDivisor = Default().Allocator.DedicatedThresholdDivisor
	}
	if cfg.Allocator.LargePoolSize == 0 {
		cfg.Allocator.LargePoolSize = Default().Allocator.LargePoolSize
	}

	core.LogInfo("config: loaded %s", path)
	return cfg, nil
}
