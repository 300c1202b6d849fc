package renderer

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima/engine/core"
)

// TextureKind distinguishes the two fallback slots a bindless lookup can
// fall back to while (or after failing to) load (spec.md §3: "Index 0
// the albedo fallback, index 1 the normal fallback").
type TextureKind int

const (
	TextureKindAlbedo TextureKind = iota
	TextureKindNormal
)

// FallbackAlbedoIndex and FallbackNormalIndex are the two reserved slots
// of every BindlessArray, populated before any streamed texture so a
// miss or in-flight request always has something plausible to sample.
const (
	FallbackAlbedoIndex uint32 = 0
	FallbackNormalIndex uint32 = 1
)

// BindlessArray is the descriptor-array side of texture streaming: a
// vector of resident images indexed by a shader-visible uint32, plus the
// bookkeeping that keeps EnsureTexture non-blocking (spec.md §3's
// TextureStreamer state, §5's ensure_texture contract).
type BindlessArray struct {
	streamer *TextureStreamer

	slots       []StreamedTexture // index 0 = albedo fallback, 1 = normal fallback
	loadedIndex map[string]uint32
	failed      map[string]bool
}

// NewBindlessArray wraps streamer with the bindless-index bookkeeping,
// seeding the two fallback slots from albedoFallback/normalFallback
// (checkerboard/flat-normal placeholders the caller uploads at startup).
func NewBindlessArray(streamer *TextureStreamer, albedoFallback, normalFallback StreamedTexture) *BindlessArray {
	return &BindlessArray{
		streamer:    streamer,
		slots:       []StreamedTexture{albedoFallback, normalFallback},
		loadedIndex: make(map[string]uint32),
		failed:      make(map[string]bool),
	}
}

// EnsureTexture returns name's bindless slot, requesting it from the
// streamer on first call. It never blocks: callers always get an index
// immediately, which is the relevant fallback slot until the background
// load lands (spec.md §5 item 1).
func (b *BindlessArray) EnsureTexture(name string, kind TextureKind, format vk.Format) uint32 {
	if idx, ok := b.loadedIndex[name]; ok {
		return idx
	}
	if b.failed[name] {
		return b.fallbackFor(kind)
	}
	b.streamer.Request(name, format)
	return b.fallbackFor(kind)
}

func (b *BindlessArray) fallbackFor(kind TextureKind) uint32 {
	if kind == TextureKindNormal {
		return FallbackNormalIndex
	}
	return FallbackAlbedoIndex
}

// Poll resolves the underlying streamer's finished futures into fresh
// bindless slots, recording a permanent fallback for any name whose load
// failed so repeat EnsureTexture calls stop retrying it (spec.md §7:
// "fallback index is permanently recorded for that name"). Call once per
// frame from the main thread, after streamer.Poll would otherwise be
// called directly.
func (b *BindlessArray) Poll() int {
	landed := 0
	for name := range b.streamer.inFlight {
		req := b.streamer.inFlight[name]
		if !req.future.Done() {
			continue
		}
		v, err := req.future.Wait()
		delete(b.streamer.inFlight, name)
		if err != nil {
			core.LogError("renderer: streaming %q failed, recording permanent fallback: %v", name, err)
			b.failed[name] = true
			continue
		}
		tex := v.(StreamedTexture)
		idx := uint32(len(b.slots))
		b.slots = append(b.slots, tex)
		b.loadedIndex[name] = idx
		b.streamer.resident[name] = tex
		landed++
	}
	return landed
}

// Slot returns the resident texture at idx, for building the descriptor
// buffer's CombinedImageSampler array.
func (b *BindlessArray) Slot(idx uint32) StreamedTexture {
	return b.slots[idx]
}

// Len reports how many slots (including the two fallbacks) are currently
// resident.
func (b *BindlessArray) Len() int { return len(b.slots) }
