// Package rendergraph implements the frame-scoped pass DAG of spec.md
// §4.2: a declarative graph of reads/writes over named resources that
// compiles into a pass execution order and the GPU synchronization
// (layout transitions, split-barrier events, dynamic-rendering begin/end)
// needed to compute a target resource correctly.
package rendergraph

import vk "github.com/goki/vulkan"

// ResourceKind distinguishes buffer and image physical resources; only
// images carry a layout.
type ResourceKind int

const (
	ResourceBuffer ResourceKind = iota
	ResourceImage
)

// ResourceId pairs a physical resource index with a virtual (SSA) version
// index over that physical resource, per spec.md §3's versioning model.
type ResourceId struct {
	Physical uint32
	Virtual  uint32
}

// materializeFn lazily creates the real Vulkan object for a transient
// PhysicalResource on first use, per spec.md §9's lazy-materialization
// design note.
type materializeFn func() (BufferHandle, ImageHandle, error)

// BufferHandle is the realized form of a buffer PhysicalResource.
type BufferHandle struct {
	Handle vk.Buffer
	Size   uint64
}

// ImageHandle is the realized form of an image PhysicalResource.
type ImageHandle struct {
	Handle vk.Image
	View   vk.ImageView
	Format vk.Format
	Extent vk.Extent2D
}

// PhysicalResource is a named, lazily materialized GPU resource. Each
// write against it produces a new VirtualResource (an SSA-like version)
// over the same physical slot.
type PhysicalResource struct {
	Name     string
	Kind     ResourceKind
	Imported bool
	// Aspect is only meaningful for ResourceImage; it defaults to
	// ImageAspectColorBit and is overridden by NewAttachment/ImportImage
	// for depth-stencil images, so barriers and attachment layouts match
	// the resource's actual subresource instead of assuming color.
	Aspect vk.ImageAspectFlags

	materialize materializeFn
	materialized bool
	buffer       BufferHandle
	image        ImageHandle

	versions []*VirtualResource
}

// isDepth reports whether p's image carries the depth aspect, the signal
// used throughout compile/execute to pick depth-attachment layouts and
// access masks instead of color ones.
func (p *PhysicalResource) isDepth() bool {
	return p.Aspect&vk.ImageAspectFlags(vk.ImageAspectDepthBit) != 0
}

// VirtualResource models one version of a physical resource: either the
// state it was imported in, an uninitialised placeholder, or the state
// produced by exactly one pass.
type VirtualResource struct {
	Physical      uint32
	Kind          ResourceKind
	Imported      bool
	Uninitialised bool
	Producer      *Pass // nil if Imported or Uninitialised

	WriteStage  vk.PipelineStageFlags
	WriteAccess vk.AccessFlags
	WriteLayout vk.ImageLayout // only meaningful for ResourceImage
}

func (p *PhysicalResource) materializeOnce() error {
	if p.materialized {
		return nil
	}
	b, im, err := p.materialize()
	if err != nil {
		return err
	}
	p.buffer = b
	p.image = im
	p.materialized = true
	return nil
}
