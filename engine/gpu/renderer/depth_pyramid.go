package renderer

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima/engine/gpu/rendergraph"
)

// DepthPyramidLevels returns the mip count a width x height depth
// pyramid needs to reduce all the way down to 1x1 (spec.md §4.3).
func DepthPyramidLevels(width, height uint32) uint32 {
	levels := uint32(1)
	for width > 1 || height > 1 {
		if width > 1 {
			width /= 2
		}
		if height > 1 {
			height /= 2
		}
		levels++
	}
	return levels
}

// DepthPyramidPipelines supplies the compute pipeline used to reduce one
// mip level from the one above it (a single min-reduction shader
// dispatched once per level, reading level N-1 and writing level N).
type DepthPyramidPipelines struct {
	ReducePipeline       vk.Pipeline
	ReducePipelineLayout vk.PipelineLayout
	// DescriptorSetFor returns the descriptor set bound to pass
	// (srcView, dstView) for level index i, built by the caller since
	// set contents depend on the concrete descriptor-buffer/pool setup
	// chosen by the owning renderer.
	DescriptorSetFor func(level uint32) vk.DescriptorSet
}

// AddDepthPyramidPass records one compute pass per mip level, each
// depending on the previous level's write, so the graph's scheduler
// naturally serializes the reduction chain (spec.md §4.3 "depth pyramid
// min-reduction").
func AddDepthPyramidPass(g *rendergraph.RenderGraph, depth rendergraph.ResourceId, width, height uint32, pipelines DepthPyramidPipelines) rendergraph.ResourceId {
	levels := DepthPyramidLevels(width, height)
	pyramid := g.NewAttachment("depth-pyramid", rendergraph.ImageDescription{
		Format: vk.FormatR32Sfloat,
		Extent: vk.Extent2D{Width: width, Height: height},
		Usage:  vk.ImageUsageFlags(vk.ImageUsageStorageBit | vk.ImageUsageSampledBit),
	})

	current := pyramid
	for level := uint32(0); level < levels; level++ {
		level := level
		pass := g.AddPass("depth-pyramid-reduce", rendergraph.PassCompute)
		if level == 0 {
			pass.Read(depth, rendergraph.ReadSampled)
		} else {
			pass.Read(current, rendergraph.ReadSampled)
		}
		written := pass.Write(&current, 0)

		w, h := levelExtent(width, height, level)
		pass.SetRecordFunc(func(cmd rendergraph.CommandRecorder, p *rendergraph.Pass) {
			vk.CmdBindPipeline(cmd.Handle(), vk.PipelineBindPointCompute, pipelines.ReducePipeline)
			if pipelines.DescriptorSetFor != nil {
				set := pipelines.DescriptorSetFor(level)
				vk.CmdBindDescriptorSets(cmd.Handle(), vk.PipelineBindPointCompute,
					pipelines.ReducePipelineLayout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
			}
			groupsX := (w + 7) / 8
			groupsY := (h + 7) / 8
			vk.CmdDispatch(cmd.Handle(), groupsX, groupsY, 1)
		})
		current = written
	}
	return current
}

func levelExtent(width, height, level uint32) (uint32, uint32) {
	w, h := width, height
	for i := uint32(0); i < level; i++ {
		if w > 1 {
			w /= 2
		}
		if h > 1 {
			h /= 2
		}
	}
	return w, h
}
