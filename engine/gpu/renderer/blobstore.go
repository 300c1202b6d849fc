package renderer

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"

	"golang.org/x/image/draw"

	"github.com/spaghettifunk/anima/engine/core"
)

// BlobStore resolves a named blob (texture, mesh, shader binary) to a
// reader, abstracting over loose files versus a packed archive the way
// engine/assets.Loader abstracts over asset kinds. The default renderer
// is handed one at construction and never opens paths itself.
type BlobStore interface {
	Open(name string) (io.ReadCloser, error)
}

// TextureBlobHeader is the fixed-size prefix of a packed texture blob:
// a raw RGBA8 mip chain, width/height halving each level, laid out
// contiguously (spec.md §6).
type TextureBlobHeader struct {
	Width     uint32
	Height    uint32
	MipLevels uint32
}

const textureBlobHeaderSize = 12

// TextureMip is one decoded, CPU-resident mip level ready for upload.
type TextureMip struct {
	Width, Height uint32
	Pixels        []byte // tightly packed RGBA8
}

// DecodeTextureBlob reads a TextureBlobHeader followed by MipLevels mip
// images, each width*height*4 bytes of RGBA8, in descending size order.
func DecodeTextureBlob(r io.Reader) ([]TextureMip, error) {
	var hdr TextureBlobHeader
	buf := make([]byte, textureBlobHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("renderer: texture blob header: %w", err)
	}
	hdr.Width = binary.LittleEndian.Uint32(buf[0:4])
	hdr.Height = binary.LittleEndian.Uint32(buf[4:8])
	hdr.MipLevels = binary.LittleEndian.Uint32(buf[8:12])

	if hdr.MipLevels == 0 || hdr.MipLevels > 16 {
		return nil, fmt.Errorf("renderer: texture blob declares implausible mip count %d", hdr.MipLevels)
	}

	mips := make([]TextureMip, hdr.MipLevels)
	w, h := hdr.Width, hdr.Height
	for i := range mips {
		size := int(w) * int(h) * 4
		pixels := make([]byte, size)
		if _, err := io.ReadFull(r, pixels); err != nil {
			return nil, fmt.Errorf("renderer: texture blob mip %d: %w", i, err)
		}
		mips[i] = TextureMip{Width: w, Height: h, Pixels: pixels}
		if w > 1 {
			w /= 2
		}
		if h > 1 {
			h /= 2
		}
	}
	return mips, nil
}

// GenerateMipChain derives a full mip chain from a single base-level RGBA
// image using a high-quality bilinear filter, for textures streamed in
// without a pre-baked chain (spec.md §6, supplementing the single-level
// path the texture loader originally supported).
func GenerateMipChain(base image.Image) []TextureMip {
	bounds := base.Bounds()
	w, h := uint32(bounds.Dx()), uint32(bounds.Dy())

	var mips []TextureMip
	src := base
	for {
		dst := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
		draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		mips = append(mips, TextureMip{Width: w, Height: h, Pixels: dst.Pix})

		if w == 1 && h == 1 {
			break
		}
		nw, nh := w, h
		if nw > 1 {
			nw /= 2
		}
		if nh > 1 {
			nh /= 2
		}
		w, h = nw, nh
		src = dst
	}
	core.LogDebug("renderer: generated %d-level mip chain from %dx%d base", len(mips), bounds.Dx(), bounds.Dy())
	return mips
}
