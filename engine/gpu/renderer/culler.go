package renderer

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima/engine/gpu/rendergraph"
)

// CullPipelines supplies the compute pipeline used by both the early and
// late cull passes; they differ only in which visibility input they
// bind (prior-frame visibility buffer versus the depth pyramid).
type CullPipelines struct {
	CullPipeline       vk.Pipeline
	CullPipelineLayout vk.PipelineLayout
	DescriptorSetFor   func(phase CullPhase) vk.DescriptorSet
}

// CullPhase distinguishes the two occlusion-culling passes of spec.md
// §4.3: the early pass trusts last frame's visibility and a frustum
// test; the late pass re-tests everything the early pass rejected
// against the freshly reduced depth pyramid.
type CullPhase int

const (
	CullEarly CullPhase = iota
	CullLate
)

// CullResources is what a single cull phase reads and writes in the
// render graph.
type CullResources struct {
	Objects       rendergraph.ResourceId // imported persistent object buffer
	Visibility    rendergraph.ResourceId // prior-frame (early) or scratch (late) visibility bitset
	DrawCommands  rendergraph.ResourceId // compacted VkDrawIndexedIndirectCommand buffer
	DrawCount     rendergraph.ResourceId // atomic counter buffer for vkCmdDrawIndexedIndirectCount
	DepthPyramid  rendergraph.ResourceId // zero value for the early phase
	ObjectCount   uint32
}

// AddCullPass records phase's compute dispatch: one thread per object,
// testing the frustum (and, for the late phase, the depth pyramid) and
// compacting survivors into DrawCommands via an atomic append counted by
// DrawCount.
func AddCullPass(g *rendergraph.RenderGraph, phase CullPhase, res CullResources, pipelines CullPipelines) (drawCmds, drawCount rendergraph.ResourceId) {
	name := "cull-early"
	if phase == CullLate {
		name = "cull-late"
	}
	pass := g.AddPass(name, rendergraph.PassCompute)

	pass.Read(res.Objects, rendergraph.ReadSampled)
	pass.Read(res.Visibility, rendergraph.ReadSampled)
	if phase == CullLate {
		pass.Read(res.DepthPyramid, rendergraph.ReadSampled)
	}

	drawCmds = pass.Write(&res.DrawCommands, 0)
	drawCount = pass.Write(&res.DrawCount, 0)

	objectCount := res.ObjectCount
	pass.SetRecordFunc(func(cmd rendergraph.CommandRecorder, p *rendergraph.Pass) {
		vk.CmdBindPipeline(cmd.Handle(), vk.PipelineBindPointCompute, pipelines.CullPipeline)
		if pipelines.DescriptorSetFor != nil {
			set := pipelines.DescriptorSetFor(phase)
			vk.CmdBindDescriptorSets(cmd.Handle(), vk.PipelineBindPointCompute,
				pipelines.CullPipelineLayout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
		}
		const workgroupSize = 64
		groups := (objectCount + workgroupSize - 1) / workgroupSize
		if groups == 0 {
			groups = 1
		}
		vk.CmdDispatch(cmd.Handle(), groups, 1, 1)
	})
	return drawCmds, drawCount
}

// AddIndirectDrawPass records a graphics pass that draws drawCmds via
// vkCmdDrawIndexedIndirectCount, bounded by the value in drawCount and
// capped at maxDraws (spec.md §4.3's "early draw" / "late draw" steps).
// The caller supplies body to bind the actual pipeline and vertex/index
// buffers before the indirect draw call, since those are scene-specific.
func AddIndirectDrawPass(g *rendergraph.RenderGraph, name string, target rendergraph.ResourceId, drawCmds, drawCount rendergraph.ResourceId, maxDraws uint32, drawCmdStride uint32, bindBody func(cmd rendergraph.CommandRecorder)) rendergraph.ResourceId {
	pass := g.AddPass(name, rendergraph.PassGraphics)
	pass.Read(drawCmds, rendergraph.ReadIndirect)
	pass.Read(drawCount, rendergraph.ReadIndirect)
	written := pass.Write(&target, rendergraph.WriteAdditive)

	pass.SetRecordFunc(func(cmd rendergraph.CommandRecorder, p *rendergraph.Pass) {
		if bindBody != nil {
			bindBody(cmd)
		}
		drawBuf, err := g.GetBuffer(drawCmds)
		if err != nil {
			return
		}
		countBuf, err := g.GetBuffer(drawCount)
		if err != nil {
			return
		}
		vk.CmdDrawIndexedIndirectCountKHR(cmd.Handle(), drawBuf.Handle, 0, countBuf.Handle, 0, maxDraws, drawCmdStride)
	})
	return written
}

// AddIndirectDrawPassMRT is AddIndirectDrawPass generalized to the
// G-buffer's multiple render targets: one graphics pass writes albedo,
// normal and depth together from a single indirect draw call, since a
// fragment shader outputs to all of them at once (spec.md §4.3's
// "early/late draw" steps bind the whole G-buffer as attachments, not
// one target at a time).
func AddIndirectDrawPassMRT(g *rendergraph.RenderGraph, name string, targets []rendergraph.ResourceId, writeFlags rendergraph.WriteFlags, drawCmds, drawCount rendergraph.ResourceId, maxDraws uint32, drawCmdStride uint32, bindBody func(cmd rendergraph.CommandRecorder)) []rendergraph.ResourceId {
	pass := g.AddPass(name, rendergraph.PassGraphics)
	pass.Read(drawCmds, rendergraph.ReadIndirect)
	pass.Read(drawCount, rendergraph.ReadIndirect)

	written := make([]rendergraph.ResourceId, len(targets))
	for i := range targets {
		t := targets[i]
		written[i] = pass.Write(&t, writeFlags)
	}

	pass.SetRecordFunc(func(cmd rendergraph.CommandRecorder, p *rendergraph.Pass) {
		if bindBody != nil {
			bindBody(cmd)
		}
		drawBuf, err := g.GetBuffer(drawCmds)
		if err != nil {
			return
		}
		countBuf, err := g.GetBuffer(drawCount)
		if err != nil {
			return
		}
		vk.CmdDrawIndexedIndirectCountKHR(cmd.Handle(), drawBuf.Handle, 0, countBuf.Handle, 0, maxDraws, drawCmdStride)
	})
	return written
}
