package rendergraph

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
)

// ImageDescription configures a transient image's materialization.
type ImageDescription struct {
	Format vk.Format
	Extent vk.Extent2D
	Usage  vk.ImageUsageFlags
	Aspect vk.ImageAspectFlags
}

// BufferDescription configures a transient buffer's materialization.
type BufferDescription struct {
	Size  uint64
	Usage vk.BufferUsageFlags
}

// ResourceFactory creates the real driver objects a RenderGraph needs
// when it lazily materializes a transient resource. The default
// renderer supplies an implementation backed by the allocator/resource
// manager; tests supply a fake.
type ResourceFactory interface {
	CreateImage(name string, desc ImageDescription) (ImageHandle, error)
	CreateBuffer(name string, desc BufferDescription) (BufferHandle, error)
}

// RenderGraph owns every pass and resource declared for one frame (or a
// cached graph reused across frames). It is recompiled on demand; events
// and transient resources conceptually live one frame, though the Go
// implementation recycles the event table across Compile calls to avoid
// reallocating VkEvent objects every frame (spec.md §5).
type RenderGraph struct {
	device  vk.Device
	factory ResourceFactory

	passes   []*Pass
	physical []*PhysicalResource

	order []*Pass

	events map[uint32]vk.Event // keyed by physical index + virtual index packed
}

// New creates an empty graph against device, backed by factory for lazy
// materialization of transient resources.
func New(device vk.Device, factory ResourceFactory) *RenderGraph {
	return &RenderGraph{device: device, factory: factory, events: make(map[uint32]vk.Event)}
}

// AddPass registers a new pass and returns it for read/write declarations.
func (g *RenderGraph) AddPass(name string, kind PassKind) *Pass {
	p := &Pass{Name: name, Kind: kind, graph: g}
	g.passes = append(g.passes, p)
	return p
}

func (g *RenderGraph) newPhysical(name string, kind ResourceKind, imported bool, mat materializeFn) uint32 {
	pr := &PhysicalResource{Name: name, Kind: kind, Imported: imported, materialize: mat}
	if kind == ResourceImage {
		pr.Aspect = vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	idx := uint32(len(g.physical))
	g.physical = append(g.physical, pr)
	return idx
}

// ImportBuffer registers an externally-owned buffer (e.g. a persistent
// object buffer) as an imported resource: its initial virtual version has
// no producer, since the graph did not create its contents.
func (g *RenderGraph) ImportBuffer(name string, handle BufferHandle) ResourceId {
	idx := g.newPhysical(name, ResourceBuffer, true, nil)
	g.physical[idx].materialized = true
	g.physical[idx].buffer = handle
	v := &VirtualResource{Physical: idx, Kind: ResourceBuffer, Imported: true}
	g.physical[idx].versions = append(g.physical[idx].versions, v)
	return ResourceId{Physical: idx, Virtual: 0}
}

// ImportImage is the image counterpart of ImportBuffer — used for the
// acquired swapchain image each frame. aspect selects the subresource
// barriers and attachment layouts target; pass
// vk.ImageAspectFlags(vk.ImageAspectColorBit) for ordinary color images
// such as the swapchain, or ImageAspectDepthBit for an imported
// depth-stencil image.
func (g *RenderGraph) ImportImage(name string, handle ImageHandle, aspect vk.ImageAspectFlags) ResourceId {
	idx := g.newPhysical(name, ResourceImage, true, nil)
	if aspect != 0 {
		g.physical[idx].Aspect = aspect
	}
	g.physical[idx].materialized = true
	g.physical[idx].image = handle
	v := &VirtualResource{Physical: idx, Kind: ResourceImage, Imported: true}
	g.physical[idx].versions = append(g.physical[idx].versions, v)
	return ResourceId{Physical: idx, Virtual: 0}
}

// NewAttachment declares a transient image resource whose materialization
// is deferred to first use.
func (g *RenderGraph) NewAttachment(name string, desc ImageDescription) ResourceId {
	if name == "" {
		name = "attachment-" + uuid.NewString()
	}
	idx := g.newPhysical(name, ResourceImage, false, func() (BufferHandle, ImageHandle, error) {
		im, err := g.factory.CreateImage(name, desc)
		return BufferHandle{}, im, err
	})
	if desc.Aspect != 0 {
		g.physical[idx].Aspect = desc.Aspect
	}
	v := &VirtualResource{Physical: idx, Kind: ResourceImage, Uninitialised: true}
	g.physical[idx].versions = append(g.physical[idx].versions, v)
	return ResourceId{Physical: idx, Virtual: 0}
}

// NewBuffer is the buffer counterpart of NewAttachment.
func (g *RenderGraph) NewBuffer(name string, desc BufferDescription) ResourceId {
	if name == "" {
		name = "buffer-" + uuid.NewString()
	}
	idx := g.newPhysical(name, ResourceBuffer, false, func() (BufferHandle, ImageHandle, error) {
		b, err := g.factory.CreateBuffer(name, desc)
		return b, ImageHandle{}, err
	})
	v := &VirtualResource{Physical: idx, Kind: ResourceBuffer, Uninitialised: true}
	g.physical[idx].versions = append(g.physical[idx].versions, v)
	return ResourceId{Physical: idx, Virtual: 0}
}

// GetBuffer force-materializes id's physical resource (if transient) and
// returns its buffer handle.
func (g *RenderGraph) GetBuffer(id ResourceId) (BufferHandle, error) {
	pr := g.physical[id.Physical]
	if pr.Kind != ResourceBuffer {
		return BufferHandle{}, fmt.Errorf("rendergraph: resource %q is not a buffer", pr.Name)
	}
	if err := pr.materializeOnce(); err != nil {
		return BufferHandle{}, err
	}
	return pr.buffer, nil
}

// GetImage is the image counterpart of GetBuffer.
func (g *RenderGraph) GetImage(id ResourceId) (ImageHandle, error) {
	pr := g.physical[id.Physical]
	if pr.Kind != ResourceImage {
		return ImageHandle{}, fmt.Errorf("rendergraph: resource %q is not an image", pr.Name)
	}
	if err := pr.materializeOnce(); err != nil {
		return ImageHandle{}, err
	}
	return pr.image, nil
}

func (g *RenderGraph) virtualResource(id ResourceId) *VirtualResource {
	return g.physical[id.Physical].versions[id.Virtual]
}

func eventKey(id ResourceId) uint32 {
	return id.Physical<<16 | id.Virtual
}
