package rendergraph

import vk "github.com/goki/vulkan"

// PassKind selects the queue/pipeline a Pass's work targets, which in
// turn determines the write_stage/write_access/write_layout its writes
// are tagged with during compilation (spec.md §4.2 step 2).
type PassKind int

const (
	PassGraphics PassKind = iota
	PassCompute
	PassTransfer
)

// ReadFlags annotates how a Pass consumes a resource it reads.
type ReadFlags uint32

const (
	// ReadAdditive marks a read that is part of a read-modify-write.
	// Compile and Execute treat it as a plain read: it adds no stage,
	// access or layout of its own.
	ReadAdditive ReadFlags = 1 << iota
	// ReadIndirect marks a buffer used as a draw-indirect argument
	// buffer, contributing DrawIndirect/IndirectCommandRead to the
	// consuming pass's accumulated dst stage/access.
	ReadIndirect
	// ReadSampled marks a shader-sampled image, as opposed to an
	// attachment.
	ReadSampled
	// ReadPresent marks the final read of a swapchain image before
	// presentation; its required layout is PresentSrcKHR.
	ReadPresent
)

// WriteFlags annotates how a Pass produces a resource it writes.
type WriteFlags uint32

const (
	// WriteAdditive loads the existing attachment contents (LoadOpLoad)
	// instead of clearing them.
	WriteAdditive WriteFlags = 1 << iota
)

// access records one read or write a Pass declares against a virtual
// resource.
type access struct {
	id        ResourceId
	readFlags ReadFlags
	writeFlags WriteFlags
	isWrite   bool
}

// Transition records an image layout change a Pass must perform before
// its body runs.
type Transition struct {
	Physical uint32
	OldLayout vk.ImageLayout
	NewLayout vk.ImageLayout
}

// RecordFunc is the user-supplied callback that records a pass's actual
// GPU work into the command buffer; invoked by Execute between the
// pass's dynamic-rendering begin/end (graphics passes only).
type RecordFunc func(cmd CommandRecorder, pass *Pass)

// Pass is one node of the render graph: a declared kind plus the reads
// and writes it performs against virtual resource versions.
type Pass struct {
	Name string
	Kind PassKind

	accesses []access

	orderIndex int

	dstStage  vk.PipelineStageFlags
	dstAccess vk.AccessFlags

	transitions []Transition

	record RecordFunc

	associatedBuffers []vk.Buffer

	graph *RenderGraph
}

// Read declares that pass consumes id with the given flags. The id is
// unchanged: reads never introduce a new SSA version.
func (p *Pass) Read(id ResourceId, flags ReadFlags) {
	p.accesses = append(p.accesses, access{id: id, readFlags: flags})
}

// Write declares that pass produces a new version over id's physical
// resource. The passed-in id is re-pointed at the freshly minted virtual
// version and also returned for convenience.
func (p *Pass) Write(id *ResourceId, flags WriteFlags) ResourceId {
	phys := p.graph.physical[id.Physical]
	v := &VirtualResource{
		Physical: id.Physical,
		Kind:     phys.Kind,
		Producer: p,
	}
	switch p.Kind {
	case PassTransfer:
		v.WriteStage = vk.PipelineStageFlags(vk.PipelineStageAllTransferBit)
		v.WriteAccess = vk.AccessFlags(vk.AccessTransferWriteBit)
		v.WriteLayout = vk.ImageLayoutTransferDstOptimal
	case PassCompute:
		v.WriteStage = vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)
		v.WriteAccess = vk.AccessFlags(vk.AccessShaderWriteBit)
		v.WriteLayout = vk.ImageLayoutGeneral
	case PassGraphics:
		v.WriteStage = vk.PipelineStageFlags(vk.PipelineStageAllGraphicsBit)
		if phys.Kind == ResourceImage && phys.isDepth() {
			v.WriteAccess = vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
			v.WriteLayout = vk.ImageLayoutDepthStencilAttachmentOptimal
		} else {
			v.WriteAccess = vk.AccessFlags(vk.AccessMemoryWriteBit)
			v.WriteLayout = vk.ImageLayoutColorAttachmentOptimal
		}
	}
	phys.versions = append(phys.versions, v)
	newID := ResourceId{Physical: id.Physical, Virtual: uint32(len(phys.versions) - 1)}
	p.accesses = append(p.accesses, access{id: newID, writeFlags: flags, isWrite: true})
	*id = newID
	return newID
}

// BindAssociatedBuffer appends buf to the pass's associated-buffer list.
// Nothing in the graph reads that list: buf's lifetime is not extended
// and nothing waits for the command buffer to retire before it may be
// destroyed.
func (p *Pass) BindAssociatedBuffer(buf vk.Buffer) {
	p.associatedBuffers = append(p.associatedBuffers, buf)
}

// SetRecordFunc assigns the callback invoked during Execute to emit this
// pass's actual commands.
func (p *Pass) SetRecordFunc(fn RecordFunc) { p.record = fn }
