package rendergraph

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/require"
)

// fakeFactory materializes transient resources without touching a real
// device, so the graph's scheduling/sync logic can be tested in
// isolation (mirrors the allocator package's Pool-vs-Allocator split).
type fakeFactory struct{}

func (fakeFactory) CreateImage(name string, desc ImageDescription) (ImageHandle, error) {
	return ImageHandle{Format: desc.Format, Extent: desc.Extent}, nil
}

func (fakeFactory) CreateBuffer(name string, desc BufferDescription) (BufferHandle, error) {
	return BufferHandle{Size: desc.Size}, nil
}

// A compute pass that writes a buffer, consumed by a graphics pass that
// reads it, should produce exactly one transition-free sync point: the
// graphics pass waits on the compute pass's event. No layout transition
// applies to buffers, only to images.
func TestCompileComputeWriteThenGraphicsRead(t *testing.T) {
	g := New(nil, fakeFactory{})

	lights := g.NewBuffer("cluster-lights", BufferDescription{Size: 4096})
	color := g.NewAttachment("hdr-color", ImageDescription{Format: vk.FormatR16g16b16a16Sfloat})

	compute := g.AddPass("cull-lights", PassCompute)
	written := compute.Write(&lights, 0)

	graphics := g.AddPass("shade", PassGraphics)
	graphics.Read(written, ReadSampled)
	shaded := graphics.Write(&color, 0)

	require.NoError(t, g.Compile(shaded))
	require.Equal(t, 2, len(g.order))
	require.Same(t, compute, g.order[0])
	require.Same(t, graphics, g.order[1])
	require.Len(t, graphics.transitions, 1, "only the color attachment write transitions, not the buffer read")
	require.Equal(t, vk.ImageLayoutColorAttachmentOptimal, graphics.transitions[0].NewLayout)
	require.NotZero(t, graphics.dstStage&vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit))
}

// The swapchain-blit pass both produces the final color contents and
// declares the ReadPresent access against its own output, so it alone
// must carry the ColorAttachmentOptimal -> PresentSrcKhr transition; an
// upstream pass touching the same physical resource must not.
func TestCompilePresentReadTransitionsOnlyOnPresentingPass(t *testing.T) {
	g := New(nil, fakeFactory{})

	swap := g.ImportImage("swapchain", ImageHandle{
		Format: vk.FormatB8g8r8a8Unorm,
		Extent: vk.Extent2D{Width: 1920, Height: 1080},
	}, vk.ImageAspectFlags(vk.ImageAspectColorBit))

	clear := g.AddPass("clear", PassGraphics)
	cleared := clear.Write(&swap, 0)

	blit := g.AddPass("tonemap-blit", PassGraphics)
	blitted := blit.Write(&cleared, 0)
	blit.Read(blitted, ReadPresent)

	require.NoError(t, g.Compile(blitted))

	require.Equal(t, []*Pass{clear, blit}, g.order)
	require.Len(t, clear.transitions, 1, "the first write off an imported image still needs Undefined -> ColorAttachmentOptimal")
	require.Equal(t, vk.ImageLayoutColorAttachmentOptimal, clear.transitions[0].NewLayout)
	require.Len(t, blit.transitions, 1, "only the present read transitions on the presenting pass, not the unchanged write layout")
	require.Equal(t, vk.ImageLayoutPresentSrcKhr, blit.transitions[0].NewLayout)
}

func TestWriteAssignsFreshVirtualVersion(t *testing.T) {
	g := New(nil, fakeFactory{})
	id := g.NewAttachment("gbuffer-albedo", ImageDescription{Format: vk.FormatR8g8b8a8Unorm})
	require.Equal(t, uint32(0), id.Virtual)

	pass := g.AddPass("gbuffer", PassGraphics)
	newID := pass.Write(&id, 0)

	require.Equal(t, uint32(1), newID.Virtual)
	require.Equal(t, newID, id, "Write must repoint the caller's ResourceId")
	require.Same(t, pass, g.virtualResource(newID).Producer)
}

func TestReadDoesNotMintNewVersion(t *testing.T) {
	g := New(nil, fakeFactory{})
	id := g.NewBuffer("objects", BufferDescription{Size: 1024})
	pass := g.AddPass("cull", PassCompute)
	pass.Read(id, ReadIndirect)
	require.Equal(t, uint32(0), id.Virtual)
	require.Len(t, g.physical[id.Physical].versions, 1)
}

func TestGetBufferMaterializesOnce(t *testing.T) {
	var calls int
	factory := funcFactory{
		createBuffer: func(name string, desc BufferDescription) (BufferHandle, error) {
			calls++
			return BufferHandle{Size: desc.Size}, nil
		},
	}
	g := New(nil, factory)
	id := g.NewBuffer("scratch", BufferDescription{Size: 256})

	h1, err := g.GetBuffer(id)
	require.NoError(t, err)
	h2, err := g.GetBuffer(id)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.Equal(t, 1, calls)
}

// A depth-aspect image written by a graphics pass must transition into
// DepthStencilAttachmentOptimal, not the color attachment layout every
// other image writer gets (spec.md §4.2 step 2's "write_layout" table is
// only unambiguous once depth/color are distinguished).
func TestCompileDepthAttachmentGetsDepthLayout(t *testing.T) {
	g := New(nil, fakeFactory{})
	depth := g.NewAttachment("gbuffer-depth", ImageDescription{
		Format: vk.FormatD32Sfloat,
		Extent: vk.Extent2D{Width: 1920, Height: 1080},
		Aspect: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
	})

	pass := g.AddPass("gbuffer", PassGraphics)
	written := pass.Write(&depth, 0)

	require.NoError(t, g.Compile(written))
	require.True(t, g.physical[depth.Physical].isDepth())
	require.Len(t, pass.transitions, 1)
	require.Equal(t, vk.ImageLayoutDepthStencilAttachmentOptimal, pass.transitions[0].NewLayout)
	require.Equal(t, vk.ImageLayoutDepthStencilAttachmentOptimal, g.virtualResource(written).WriteLayout)
}

// A plain (non-Sampled, non-Present) image read must still transition
// into a read-only layout rather than silently keeping the producer's
// write layout, and a transfer-pass read must land in TransferSrcOptimal
// (spec.md §4.2 step 3's three-way readLayout rule).
func TestCompileReadLayoutRules(t *testing.T) {
	g := New(nil, fakeFactory{})
	color := g.NewAttachment("scene-color", ImageDescription{Format: vk.FormatR8g8b8a8Unorm})
	readback := g.NewBuffer("readback", BufferDescription{Size: 4096})

	producer := g.AddPass("produce", PassGraphics)
	produced := producer.Write(&color, 0)

	transfer := g.AddPass("copy-out", PassTransfer)
	transfer.Read(produced, 0)
	copied := transfer.Write(&readback, 0)

	require.NoError(t, g.Compile(copied))
	require.Len(t, transfer.transitions, 1, "the transfer pass's read must transition ColorAttachmentOptimal -> TransferSrcOptimal")
	require.Equal(t, vk.ImageLayoutTransferSrcOptimal, transfer.transitions[0].NewLayout)
}

func TestCompilePlainReadFallsBackToReadOnlyOptimal(t *testing.T) {
	g := New(nil, fakeFactory{})
	color := g.NewAttachment("scene-color", ImageDescription{Format: vk.FormatR8g8b8a8Unorm})
	scratch := g.NewBuffer("scratch", BufferDescription{Size: 4096})

	producer := g.AddPass("produce", PassGraphics)
	produced := producer.Write(&color, 0)

	consumer := g.AddPass("depth-test-against", PassGraphics)
	consumer.Read(produced, 0)
	final := consumer.Write(&scratch, 0)

	require.NoError(t, g.Compile(final))
	require.Len(t, consumer.transitions, 1, "a plain read must transition into ReadOnlyOptimal, not inherit the current layout unchanged")
	require.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, consumer.transitions[0].NewLayout)
}

type funcFactory struct {
	createImage  func(string, ImageDescription) (ImageHandle, error)
	createBuffer func(string, BufferDescription) (BufferHandle, error)
}

func (f funcFactory) CreateImage(name string, desc ImageDescription) (ImageHandle, error) {
	return f.createImage(name, desc)
}

func (f funcFactory) CreateBuffer(name string, desc BufferDescription) (BufferHandle, error) {
	return f.createBuffer(name, desc)
}
