// Package renderer implements the GPU-driven clustered deferred renderer
// of spec.md §4.3: two-phase occlusion culling against a depth pyramid,
// cascaded shadow mapping, tiled light culling and a deferred shading
// pass, wired together as a engine/gpu/rendergraph.RenderGraph each
// frame.
package renderer

import (
	vk "github.com/goki/vulkan"

	vmath "github.com/spaghettifunk/anima/engine/math"
)

// Object is one entry of the persistent, GPU-resident object buffer: the
// draw-time state a cull pass needs to decide visibility and a shade
// pass needs to transform and shade, packed to match its GLSL/HLSL
// mirror 1:1 (spec.md §3 — field order and sizes are part of the wire
// contract, not just a Go convenience).
type Object struct {
	Transform    vmath.Mat4
	Center       vmath.Vec3
	Radius       float32
	AlbedoIndex  uint32
	NormalIndex  uint32
	IndexCount   uint32
	FirstIndex   uint32
	VertexOffset uint32
}

// ObjectLimit is k_object_limit from spec.md §4.3: the per-frame object
// count the culling buffers are sized for. A scene with more objects
// than this is clamped, not rejected.
const ObjectLimit = 65535 * 32

// ClampObjectCount enforces ObjectLimit, per spec.md §4.3's "if
// object_count would exceed k_object_limit, it is clamped" edge case.
func ClampObjectCount(count int) uint32 {
	if count > ObjectLimit {
		return ObjectLimit
	}
	return uint32(count)
}

// DrawCmd is one VkDrawIndexedIndirectCommand-compatible entry written by
// a cull pass's compaction step. Field order and sizes mirror the Vulkan
// struct exactly so the compute shader output can be bound directly as
// the indirect draw buffer.
type DrawCmd struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

// UniformBuffer is the per-frame global buffer every pass binds: the
// main view's matrices (including the frozen cull_view used by both cull
// passes so late-cull re-tests against the same frustum the early pass
// used, not a camera that moved mid-frame), object count, and frustum
// planes, per spec.md §3's literal field list. The cascade fields are an
// [EXPANSION]: the shadow pass needs its cascade matrices somewhere and
// the teacher keeps all per-frame globals in one UBO
// (engine/renderer/metadata/renderer.go's GlobalUniformObject).
type UniformBuffer struct {
	Projection        vmath.Mat4
	InvProjection     vmath.Mat4
	View              vmath.Mat4
	ProjView          vmath.Mat4
	InvProjView       vmath.Mat4
	CullView          vmath.Mat4
	ViewPosition      vmath.Vec4
	ObjectCount       uint32
	CascadeCount      uint32
	_pad              [2]uint32
	FrustumPlanes     [4]vmath.Vec4
	CascadeViewProj   [MaxShadowCascades]vmath.Mat4
	CascadeSplits     [MaxShadowCascades]float32
}

// MeshInfo describes one mesh's geometry location inside the shared
// vertex/index buffers, so a cull pass can populate a DrawCmd without a
// per-mesh descriptor.
type MeshInfo struct {
	FirstIndex   uint32
	IndexCount   uint32
	VertexOffset int32
	_pad         uint32
}

// Light is one entry of the scene's light list consumed by the tiled
// light culling pass.
type Light struct {
	PositionRadius vmath.Vec4 // xyz = position (view space), w = radius
	ColorIntensity vmath.Vec4 // xyz = color, w = intensity
}

const (
	// TileSize is the pixel extent of one light-culling tile (spec.md §4.3).
	TileSize = 32
	// MaxLightsPerTile bounds the per-tile compacted light index list.
	MaxLightsPerTile = 256
	// MaxShadowCascades is the cascaded shadow map split count.
	MaxShadowCascades = 4
	// CascadeSplitLambda blends linear and logarithmic cascade splits.
	CascadeSplitLambda = 0.85
)

// DebugViewMode selects an alternate deferred-shading output, wired as a
// specialization constant on the shading pipeline (spec.md §9 carries
// this over from the teacher's single-pass renderer debug views).
type DebugViewMode uint32

const (
	DebugViewNone DebugViewMode = iota
	DebugViewAlbedo
	DebugViewNormal
	DebugViewDepth
	DebugViewLightCount
	DebugViewCascade
)

// GBuffer names the render-graph attachments the geometry pass produces
// and the shading pass consumes.
type GBuffer struct {
	Albedo   vk.Format
	Normal   vk.Format
	Material vk.Format
	Depth    vk.Format
}

// DefaultGBufferFormats mirrors the formats the teacher's single-pass
// renderer already declares for its swapchain/depth attachments, reused
// here for the deferred G-buffer (engine/renderer/vulkan/swapchain.go).
func DefaultGBufferFormats() GBuffer {
	return GBuffer{
		Albedo:   vk.FormatR8g8b8a8Unorm,
		Normal:   vk.FormatA2r10g10b10UnormPack32,
		Material: vk.FormatR8g8b8a8Unorm,
		Depth:    vk.FormatD32Sfloat,
	}
}
