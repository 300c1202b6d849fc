package renderer

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/gpu/allocator"
)

// StagingUploader issues the staging-buffer copy a streamed texture needs
// once its pixels are decoded on a worker goroutine; NewDirectUploader
// returns one implementation.
type StagingUploader interface {
	UploadTexture(mips []TextureMip, format vk.Format) (vk.Image, vk.ImageView, error)
}

// streamRequest is one in-flight texture load.
type streamRequest struct {
	name   string
	future *Future
}

// TextureStreamer decodes texture blobs off the frame thread and hands
// the result to a StagingUploader, so a newly-requested texture never
// stalls the frame waiting on disk IO or mip generation.
type TextureStreamer struct {
	store    BlobStore
	uploader StagingUploader
	pool     *WorkerPool

	inFlight map[string]*streamRequest
	resident map[string]StreamedTexture
}

// StreamedTexture is a texture fully resident on the GPU.
type StreamedTexture struct {
	Image  vk.Image
	View   vk.ImageView
	Format vk.Format
}

// NewTextureStreamer starts a worker pool of the given size backed by
// store for blob lookup and uploader for the actual GPU upload.
func NewTextureStreamer(store BlobStore, uploader StagingUploader, workers int) *TextureStreamer {
	return &TextureStreamer{
		store:    store,
		uploader: uploader,
		pool:     NewWorkerPool(workers, 64),
		inFlight: make(map[string]*streamRequest),
		resident: make(map[string]StreamedTexture),
	}
}

// Request begins streaming name if it isn't already resident or
// in-flight, returning a Future resolving to the GPU-resident texture.
func (ts *TextureStreamer) Request(name string, format vk.Format) *Future {
	if tex, ok := ts.resident[name]; ok {
		fut := newFuture()
		fut.resolve(tex, nil)
		return fut
	}
	if req, ok := ts.inFlight[name]; ok {
		return req.future
	}

	fut := Submit(ts.pool, func() (StreamedTexture, error) {
		r, err := ts.store.Open(name)
		if err != nil {
			return StreamedTexture{}, fmt.Errorf("renderer: opening texture %q: %w", name, err)
		}
		defer r.Close()

		mips, err := DecodeTextureBlob(r)
		if err != nil {
			return StreamedTexture{}, err
		}

		img, view, err := ts.uploader.UploadTexture(mips, format)
		if err != nil {
			return StreamedTexture{}, err
		}
		return StreamedTexture{Image: img, View: view, Format: format}, nil
	})

	ts.inFlight[name] = &streamRequest{name: name, future: fut}
	return fut
}

// Poll resolves any futures that have finished and moves them from
// in-flight to resident, returning how many newly landed. Call once per
// frame from the main thread.
func (ts *TextureStreamer) Poll() int {
	landed := 0
	for name, req := range ts.inFlight {
		if !req.future.Done() {
			continue
		}
		v, err := req.future.Wait()
		delete(ts.inFlight, name)
		if err != nil {
			core.LogError("renderer: streaming %q failed: %v", name, err)
			continue
		}
		ts.resident[name] = v.(StreamedTexture)
		landed++
	}
	return landed
}

// Shutdown stops the worker pool after every queued request has run, so
// each in-flight future has resolved by the time it returns.
func (ts *TextureStreamer) Shutdown() {
	ts.pool.Shutdown()
}

// directUploader adapts an allocator.Allocator plus a device into
// a minimal StagingUploader for tests and simple front ends that don't
// need a dedicated transfer queue.
type directUploader struct {
	device    vk.Device
	allocator *allocator.Allocator
	queue     vk.Queue
	pool      vk.CommandPool
}

// NewDirectUploader builds a StagingUploader that creates the image,
// allocates and binds its memory from alloc, and creates a view covering
// every mip level. It does not copy the mip pixels into the image: no
// staging buffer is allocated and nothing is recorded or submitted on
// queue or pool, so the image contents are undefined.
func NewDirectUploader(device vk.Device, alloc *allocator.Allocator, queue vk.Queue, pool vk.CommandPool) StagingUploader {
	return &directUploader{device: device, allocator: alloc, queue: queue, pool: pool}
}

func (u *directUploader) UploadTexture(mips []TextureMip, format vk.Format) (vk.Image, vk.ImageView, error) {
	if len(mips) == 0 {
		return nil, nil, fmt.Errorf("renderer: UploadTexture called with no mip levels")
	}
	base := mips[0]

	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width: base.Width, Height: base.Height, Depth: 1,
		},
		MipLevels:   uint32(len(mips)),
		ArrayLayers: 1,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit),
		SharingMode: vk.SharingModeExclusive,
	}
	var image vk.Image
	if res := vk.CreateImage(u.device, &imageInfo, nil, &image); res != vk.Success {
		return nil, nil, fmt.Errorf("renderer: vkCreateImage failed: %d", res)
	}

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(u.device, image, &memReqs)
	memReqs.Deref()

	alloc, err := u.allocator.Allocate(allocator.Requirements{
		Size: memReqs.Size, Alignment: memReqs.Alignment, MemoryTypeBits: memReqs.MemoryTypeBits,
	})
	if err != nil {
		return nil, nil, err
	}
	if res := vk.BindImageMemory(u.device, image, alloc.Memory(), alloc.Offset()); res != vk.Success {
		return nil, nil, fmt.Errorf("renderer: vkBindImageMemory failed: %d", res)
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: uint32(len(mips)),
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(u.device, &viewInfo, nil, &view); res != vk.Success {
		return nil, nil, fmt.Errorf("renderer: vkCreateImageView failed: %d", res)
	}

	return image, view, nil
}
