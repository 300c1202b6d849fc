package renderer

import (
	"math"

	vk "github.com/goki/vulkan"

	vmath "github.com/spaghettifunk/anima/engine/math"
	"github.com/spaghettifunk/anima/engine/gpu/rendergraph"
)

// CascadeSplit is one cascade's near/far depth range in view space.
type CascadeSplit struct {
	Near, Far float32
}

// ComputeCascadeSplits blends a linear and a logarithmic split scheme by
// CascadeSplitLambda, per spec.md §4.3's cascaded shadow mapping
// contract: cascades nearer the camera stay small (sharper shadows),
// farther ones grow geometrically.
func ComputeCascadeSplits(nearClip, farClip float32, count int) []CascadeSplit {
	if count <= 0 {
		return nil
	}
	splits := make([]float32, count+1)
	splits[0] = nearClip
	ratio := farClip / nearClip
	for i := 1; i <= count; i++ {
		p := float32(i) / float32(count)
		log := nearClip * float32(math.Pow(float64(ratio), float64(p)))
		linear := nearClip + (farClip-nearClip)*p
		splits[i] = CascadeSplitLambda*log + (1-CascadeSplitLambda)*linear
	}

	out := make([]CascadeSplit, count)
	for i := 0; i < count; i++ {
		out[i] = CascadeSplit{Near: splits[i], Far: splits[i+1]}
	}
	return out
}

// TexelSnapOrigin rounds a cascade's orthographic projection origin to a
// whole shadow-map texel in world space, eliminating shimmer as the
// camera moves (spec.md §4.3).
func TexelSnapOrigin(origin vmath.Vec3, worldUnitsPerTexel float32) vmath.Vec3 {
	snap := func(v float32) float32 {
		return float32(math.Floor(float64(v/worldUnitsPerTexel))) * worldUnitsPerTexel
	}
	return vmath.Vec3{X: snap(origin.X), Y: snap(origin.Y), Z: snap(origin.Z)}
}

// ShadowPipelines supplies the depth-only pipeline shared by every
// cascade; only the descriptor set returned by DescriptorSetFor differs
// between cascades.
type ShadowPipelines struct {
	DepthPipeline       vk.Pipeline
	DepthPipelineLayout vk.PipelineLayout
	DescriptorSetFor    func(cascade int) vk.DescriptorSet
}

// AddShadowCascadePasses records one graphics pass per cascade, each
// rendering scene geometry depth-only into the same transient
// mapSize x mapSize depth attachment (a single 2D image; no array layers
// or per-cascade slices are created), and returns the id of its last
// version for the lighting pass to sample.
func AddShadowCascadePasses(g *rendergraph.RenderGraph, cascades []CascadeSplit, mapSize uint32, drawBody func(cmd rendergraph.CommandRecorder, cascade int)) rendergraph.ResourceId {
	shadowMap := g.NewAttachment("shadow-cascades", rendergraph.ImageDescription{
		Format: vk.FormatD32Sfloat,
		Extent: vk.Extent2D{Width: mapSize, Height: mapSize},
		Usage:  vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageSampledBit),
		Aspect: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
	})

	current := shadowMap
	for i := range cascades {
		i := i
		pass := g.AddPass("shadow-cascade", rendergraph.PassGraphics)
		written := pass.Write(&current, 0)
		pass.SetRecordFunc(func(cmd rendergraph.CommandRecorder, p *rendergraph.Pass) {
			if drawBody != nil {
				drawBody(cmd, i)
			}
		})
		current = written
	}
	return current
}
