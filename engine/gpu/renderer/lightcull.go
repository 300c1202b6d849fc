package renderer

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima/engine/gpu/rendergraph"
)

// TileGridDimensions returns the tile count covering a viewport of the
// given extent, rounding up partial edge tiles (spec.md §4.3: 32x32 px
// tiles).
func TileGridDimensions(viewportWidth, viewportHeight uint32) (tilesX, tilesY uint32) {
	tilesX = (viewportWidth + TileSize - 1) / TileSize
	tilesY = (viewportHeight + TileSize - 1) / TileSize
	return
}

// LightCullPipelines supplies the compute pipeline that, for each tile,
// intersects the view-space light list against the tile's frustum and
// writes a capped index list.
type LightCullPipelines struct {
	Pipeline         vk.Pipeline
	PipelineLayout   vk.PipelineLayout
	DescriptorSet    vk.DescriptorSet
}

// AddLightCullPass dispatches one workgroup per tile, each producing up
// to MaxLightsPerTile indices into lights. Overflowing lists are clamped
// rather than overflowed, with the drop count logged by the caller's
// readback (the compute shader itself cannot log).
func AddLightCullPass(g *rendergraph.RenderGraph, lights, depth rendergraph.ResourceId, viewportWidth, viewportHeight uint32, pipelines LightCullPipelines) rendergraph.ResourceId {
	tilesX, tilesY := TileGridDimensions(viewportWidth, viewportHeight)

	tileLightLists := g.NewBuffer("tile-light-lists", rendergraph.BufferDescription{
		Size:  uint64(tilesX) * uint64(tilesY) * (4 + MaxLightsPerTile*4),
		Usage: vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit),
	})

	pass := g.AddPass("light-cull", rendergraph.PassCompute)
	pass.Read(lights, rendergraph.ReadSampled)
	pass.Read(depth, rendergraph.ReadSampled)
	written := pass.Write(&tileLightLists, 0)

	pass.SetRecordFunc(func(cmd rendergraph.CommandRecorder, p *rendergraph.Pass) {
		vk.CmdBindPipeline(cmd.Handle(), vk.PipelineBindPointCompute, pipelines.Pipeline)
		if pipelines.DescriptorSet != nil {
			vk.CmdBindDescriptorSets(cmd.Handle(), vk.PipelineBindPointCompute,
				pipelines.PipelineLayout, 0, 1, []vk.DescriptorSet{pipelines.DescriptorSet}, 0, nil)
		}
		vk.CmdDispatch(cmd.Handle(), tilesX, tilesY, 1)
	})
	return written
}

// ClampTileLightCount enforces the per-tile cap the compute shader's
// atomic counter cannot itself log a warning for; called from the CPU
// side when building a tile's light list in a software fallback or unit
// test path (spec.md §4.3's tile overflow edge case).
func ClampTileLightCount(count int) (clamped int, dropped int) {
	if count <= MaxLightsPerTile {
		return count, 0
	}
	return MaxLightsPerTile, count - MaxLightsPerTile
}
