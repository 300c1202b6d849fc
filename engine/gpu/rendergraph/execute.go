package rendergraph

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima/engine/core"
)

// CommandRecorder is the surface a Pass's RecordFunc gets to emit its own
// work. It is a thin wrapper over the raw command buffer handle: the
// graph only needs to intercede around a pass's recording (barriers,
// dynamic rendering begin/end), not on every individual draw/dispatch
// call, so passes reach through Handle() for the rest (mirrors how
// VulkanCommandBuffer wraps a single vk.CommandBuffer and leaves
// individual vkCmd* calls to callers).
type CommandRecorder interface {
	Handle() vk.CommandBuffer
}

type commandRecorder struct {
	handle vk.CommandBuffer
}

func (c *commandRecorder) Handle() vk.CommandBuffer { return c.handle }

// Destroy releases every VkEvent the graph allocated across past Compile
// calls. Call once at renderer shutdown, not per frame.
func (g *RenderGraph) Destroy(allocationCallbacks *vk.AllocationCallbacks) {
	for _, ev := range g.events {
		vk.DestroyEvent(g.device, ev, allocationCallbacks)
	}
	g.events = make(map[uint32]vk.Event)
}

func (g *RenderGraph) eventFor(id ResourceId) (vk.Event, error) {
	key := eventKey(id)
	if ev, ok := g.events[key]; ok {
		return ev, nil
	}
	var ev vk.Event
	info := vk.EventCreateInfo{SType: vk.StructureTypeEventCreateInfo}
	if res := vk.CreateEvent(g.device, &info, nil, &ev); res != vk.Success {
		return nil, fmt.Errorf("rendergraph: failed to create event: %d", res)
	}
	g.events[key] = ev
	return ev, nil
}

// Execute records every compiled pass's synchronization and body into
// cmdBuffer, in the order Compile produced. Producers signal a VkEvent at
// their write_stage once recorded; every pass that reads a version waits
// on that version's event at its accumulated dst_stage before running,
// implementing the split-barrier scheme of spec.md §4.2 step 5.
func (g *RenderGraph) Execute(cmdBuffer vk.CommandBuffer) error {
	rec := &commandRecorder{handle: cmdBuffer}

	for _, p := range g.order {
		if err := g.waitForReads(cmdBuffer, p); err != nil {
			return err
		}
		if err := g.applyTransitions(cmdBuffer, p); err != nil {
			return err
		}

		isGraphics := p.Kind == PassGraphics && g.hasAttachments(p)
		if isGraphics {
			g.beginRendering(cmdBuffer, p)
		}
		if p.record != nil {
			p.record(rec, p)
		}
		if isGraphics {
			vk.CmdEndRenderingKHR(cmdBuffer)
		}

		if err := g.signalWrites(cmdBuffer, p); err != nil {
			return err
		}
	}
	return nil
}

func (g *RenderGraph) waitForReads(cmdBuffer vk.CommandBuffer, p *Pass) error {
	for _, a := range p.accesses {
		if a.isWrite {
			continue
		}
		v := g.virtualResource(a.id)
		if v.Producer == nil || v.Producer == p {
			continue
		}
		ev, err := g.eventFor(a.id)
		if err != nil {
			return err
		}
		vk.CmdWaitEvents(cmdBuffer, 1, []vk.Event{ev},
			vk.PipelineStageFlags(v.WriteStage), p.dstStage,
			0, nil, 0, nil, 0, nil)
	}
	return nil
}

func (g *RenderGraph) applyTransitions(cmdBuffer vk.CommandBuffer, p *Pass) error {
	for _, t := range p.transitions {
		phys := g.physical[t.Physical]
		if err := phys.materializeOnce(); err != nil {
			return err
		}
		aspect := phys.Aspect
		if aspect == 0 {
			aspect = vk.ImageAspectFlags(vk.ImageAspectColorBit)
		}
		barrier := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			OldLayout:           t.OldLayout,
			NewLayout:           t.NewLayout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               phys.image.Handle,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     aspect,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
		vk.CmdPipelineBarrier(cmdBuffer,
			vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), p.dstStage,
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	}
	return nil
}

func (g *RenderGraph) signalWrites(cmdBuffer vk.CommandBuffer, p *Pass) error {
	for _, a := range p.accesses {
		if !a.isWrite {
			continue
		}
		ev, err := g.eventFor(a.id)
		if err != nil {
			return err
		}
		v := g.virtualResource(a.id)
		vk.CmdSetEvent(cmdBuffer, ev, vk.PipelineStageFlags(v.WriteStage))
	}
	return nil
}

func (g *RenderGraph) hasAttachments(p *Pass) bool {
	for _, a := range p.accesses {
		if g.physical[a.id.Physical].Kind != ResourceImage {
			continue
		}
		if a.isWrite || a.readFlags&ReadSampled == 0 {
			return true
		}
	}
	return false
}

// beginRendering constructs a VK_KHR_dynamic_rendering begin info from
// the image resources p reads and writes (spec.md §4.3 step 3): writes
// are Clear/Store unless WriteAdditive, which is Load/Store; non-Sampled
// reads (an image bound as an attachment but not produced by this pass,
// e.g. a depth test against an already-populated depth buffer) are
// Load/None; Sampled reads are descriptor-bound, not attachments, and are
// skipped. A depth-aspect resource becomes the depth attachment, every
// other image an entry in the color attachment list. The render area is
// inferred from the largest attachment, and the viewport/scissor are set
// to cover it full-extent, since this renderer always uses dynamic
// viewport/scissor state (mirrors the fixed full-framebuffer viewport
// engine/renderer/vulkan/backend.go sets for its single static
// renderpass).
func (g *RenderGraph) beginRendering(cmdBuffer vk.CommandBuffer, p *Pass) {
	var colorAttachments []vk.RenderingAttachmentInfo
	var depthAttachment *vk.RenderingAttachmentInfo
	var extent vk.Extent2D

	seen := make(map[uint32]bool)
	for _, a := range p.accesses {
		phys := g.physical[a.id.Physical]
		if phys.Kind != ResourceImage {
			continue
		}
		if !a.isWrite && a.readFlags&ReadSampled != 0 {
			continue
		}
		if seen[a.id.Physical] {
			continue
		}
		seen[a.id.Physical] = true

		if err := phys.materializeOnce(); err != nil {
			core.LogError("rendergraph: failed to materialize attachment %q: %v", phys.Name, err)
			continue
		}

		var loadOp vk.AttachmentLoadOp
		var storeOp vk.AttachmentStoreOp
		if a.isWrite {
			storeOp = vk.AttachmentStoreOpStore
			if a.writeFlags&WriteAdditive != 0 {
				loadOp = vk.AttachmentLoadOpLoad
			} else {
				loadOp = vk.AttachmentLoadOpClear
			}
		} else {
			loadOp = vk.AttachmentLoadOpLoad
			storeOp = vk.AttachmentStoreOpDontCare
		}

		attachment := vk.RenderingAttachmentInfo{
			SType:     vk.StructureTypeRenderingAttachmentInfo,
			ImageView: phys.image.View,
			LoadOp:    loadOp,
			StoreOp:   storeOp,
		}
		if phys.isDepth() {
			attachment.ImageLayout = vk.ImageLayoutDepthStencilAttachmentOptimal
			depthAttachment = &attachment
		} else {
			attachment.ImageLayout = vk.ImageLayoutColorAttachmentOptimal
			colorAttachments = append(colorAttachments, attachment)
		}

		if phys.image.Extent.Width*phys.image.Extent.Height > extent.Width*extent.Height {
			extent = phys.image.Extent
		}
	}

	info := vk.RenderingInfo{
		SType:                vk.StructureTypeRenderingInfo,
		RenderArea:           vk.Rect2D{Offset: vk.Offset2D{}, Extent: extent},
		LayerCount:           1,
		ColorAttachmentCount: uint32(len(colorAttachments)),
		PColorAttachments:    colorAttachments,
	}
	if depthAttachment != nil {
		info.PDepthAttachment = depthAttachment
	}
	vk.CmdBeginRenderingKHR(cmdBuffer, &info)

	viewport := vk.Viewport{
		X: 0, Y: 0,
		Width: float32(extent.Width), Height: float32(extent.Height),
		MinDepth: 0.0, MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{Offset: vk.Offset2D{X: 0, Y: 0}, Extent: extent}
	vk.CmdSetViewport(cmdBuffer, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(cmdBuffer, 0, 1, []vk.Rect2D{scissor})
}
