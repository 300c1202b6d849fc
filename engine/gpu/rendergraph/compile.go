package rendergraph

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima/engine/core"
)

// Compile walks the pass graph backward from target, keeping only the
// passes target transitively depends on, and derives the scheduling
// order plus every pass's synchronization requirements (spec.md §4.2
// steps 3-4). It must be called once per frame before Execute.
func (g *RenderGraph) Compile(target ResourceId) error {
	g.order = g.order[:0]

	visited := make(map[*Pass]bool)
	var visit func(p *Pass)
	visit = func(p *Pass) {
		if p == nil || visited[p] {
			return
		}
		visited[p] = true
		for _, a := range p.accesses {
			if a.isWrite {
				// A write still orders after whatever produced the
				// version it supersedes, even with no explicit read,
				// so write-after-write chains on one physical resource
				// stay in version order.
				if a.id.Virtual > 0 {
					if prevProducer := g.physical[a.id.Physical].versions[a.id.Virtual-1].Producer; prevProducer != nil {
						visit(prevProducer)
					}
				}
				continue
			}
			v := g.virtualResource(a.id)
			if v.Producer != nil && v.Producer != p {
				visit(v.Producer)
			}
		}
		g.order = append(g.order, p)
	}

	targetV := g.virtualResource(target)
	if targetV.Producer == nil {
		return fmt.Errorf("rendergraph: target resource %q has no producing pass", g.physical[target.Physical].Name)
	}
	visit(targetV.Producer)

	for _, p := range g.order {
		p.dstStage = 0
		p.dstAccess = 0
		p.transitions = p.transitions[:0]

		for _, a := range p.accesses {
			v := g.virtualResource(a.id)
			phys := g.physical[a.id.Physical]

			if a.isWrite {
				if phys.Kind == ResourceImage && v.Producer == p {
					old := currentLayout(phys, a.id.Virtual)
					if old != v.WriteLayout {
						p.transitions = append(p.transitions, Transition{
							Physical: a.id.Physical,
							OldLayout: old,
							NewLayout: v.WriteLayout,
						})
					}
				}
				continue
			}

			// Read: accumulate this pass's dst stage/access from the
			// flags on the access, per spec.md §4.2 step 4.
			p.dstStage |= readStage(p.Kind, a.readFlags)
			p.dstAccess |= readAccess(a.readFlags)

			if phys.Kind == ResourceImage {
				want := readLayout(p.Kind, a.readFlags, phys)
				if want != v.WriteLayout {
					p.transitions = append(p.transitions, Transition{
						Physical: a.id.Physical,
						OldLayout: v.WriteLayout,
						NewLayout: want,
					})
				}
			}
		}
	}

	core.LogDebug("rendergraph: compiled %d passes for target %q", len(g.order), g.physical[target.Physical].Name)
	return nil
}

// currentLayout returns the layout the physical resource was left in by
// the version immediately preceding virtualIndex, or Undefined for the
// first write.
func currentLayout(phys *PhysicalResource, virtualIndex uint32) vk.ImageLayout {
	if virtualIndex == 0 {
		return vk.ImageLayoutUndefined
	}
	prev := phys.versions[virtualIndex-1]
	if prev.Uninitialised {
		return vk.ImageLayoutUndefined
	}
	return prev.WriteLayout
}

func readStage(kind PassKind, flags ReadFlags) vk.PipelineStageFlags {
	switch {
	case flags&ReadIndirect != 0:
		return vk.PipelineStageFlags(vk.PipelineStageDrawIndirectBit)
	case kind == PassCompute:
		return vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)
	case flags&ReadSampled != 0:
		return vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	case flags&ReadPresent != 0:
		return vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	default:
		return vk.PipelineStageFlags(vk.PipelineStageAllGraphicsBit)
	}
}

func readAccess(flags ReadFlags) vk.AccessFlags {
	var a vk.AccessFlags
	if flags&ReadIndirect != 0 {
		a |= vk.AccessFlags(vk.AccessIndirectCommandReadBit)
	}
	if flags&ReadSampled != 0 {
		a |= vk.AccessFlags(vk.AccessShaderReadBit)
	}
	if flags&ReadPresent == 0 && flags&ReadIndirect == 0 && flags&ReadSampled == 0 {
		a |= vk.AccessFlags(vk.AccessMemoryReadBit)
	}
	return a
}

// readLayout determines the layout a read requires, per spec.md §4.2
// step 3: PresentSrcKHR for a Present read, TransferSrcOptimal when the
// consuming pass itself is a transfer pass, otherwise the read-only
// layout (DepthStencilReadOnlyOptimal for a depth-aspect image,
// ShaderReadOnlyOptimal for everything else) — never the resource's
// current layout, so a plain read always gets transitioned into a
// read-only layout instead of silently inheriting whatever wrote it.
func readLayout(kind PassKind, flags ReadFlags, phys *PhysicalResource) vk.ImageLayout {
	switch {
	case flags&ReadPresent != 0:
		return vk.ImageLayoutPresentSrcKhr
	case kind == PassTransfer:
		return vk.ImageLayoutTransferSrcOptimal
	case phys.isDepth():
		return vk.ImageLayoutDepthStencilReadOnlyOptimal
	default:
		return vk.ImageLayoutShaderReadOnlyOptimal
	}
}
