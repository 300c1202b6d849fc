package renderer

import (
	"errors"
	"io"
	"testing"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/require"
)

// ClampObjectCount must never let a frame exceed k_object_limit (spec.md
// §4.3's failure-semantics clamp).
func TestClampObjectCount(t *testing.T) {
	require.Equal(t, uint32(10), ClampObjectCount(10))
	require.Equal(t, uint32(ObjectLimit), ClampObjectCount(ObjectLimit+1))
	require.Equal(t, uint32(ObjectLimit), ClampObjectCount(ObjectLimit))
}

func TestPrevPowerOfTwo(t *testing.T) {
	cases := map[uint32]uint32{
		0: 1, 1: 1, 2: 2, 3: 2, 1920: 1024, 1024: 1024, 1080: 1024,
	}
	for in, want := range cases {
		require.Equal(t, want, prevPowerOfTwo(in), "input %d", in)
	}
}

func TestTileGridDimensions(t *testing.T) {
	x, y := TileGridDimensions(1920, 1080)
	require.Equal(t, uint32(60), x)
	require.Equal(t, uint32(34), y)
}

func TestClampTileLightCount(t *testing.T) {
	clamped, dropped := ClampTileLightCount(100)
	require.Equal(t, 100, clamped)
	require.Equal(t, 0, dropped)

	clamped, dropped = ClampTileLightCount(300)
	require.Equal(t, MaxLightsPerTile, clamped)
	require.Equal(t, 300-MaxLightsPerTile, dropped)
}

func TestDepthPyramidLevels(t *testing.T) {
	require.Equal(t, uint32(1), DepthPyramidLevels(1, 1))
	require.Equal(t, uint32(11), DepthPyramidLevels(1024, 1024))
	require.Equal(t, uint32(11), DepthPyramidLevels(1920, 1080))
}

func TestComputeCascadeSplitsCoversFullRange(t *testing.T) {
	splits := ComputeCascadeSplits(0.1, 100, 4)
	require.Len(t, splits, 4)
	require.Equal(t, float32(0.1), splits[0].Near)
	require.Equal(t, float32(100), splits[len(splits)-1].Far)
	for i := 1; i < len(splits); i++ {
		require.Equal(t, splits[i-1].Far, splits[i].Near, "cascades must tile the range with no gap or overlap")
		require.Greater(t, splits[i].Far, splits[i].Near)
	}
}

// fakeBlobStore answers Open for a fixed set of names and errors
// otherwise, standing in for a vpak collaborator in tests (spec.md §6).
type fakeBlobStore struct {
	fail map[string]bool
}

func (f fakeBlobStore) Open(name string) (io.ReadCloser, error) {
	if f.fail[name] {
		return nil, errors.New("blob not found")
	}
	return io.NopCloser(nopReader{}), nil
}

type nopReader struct{}

func (nopReader) Read(p []byte) (int, error) { return 0, io.EOF }

type fakeUploader struct{}

func (fakeUploader) UploadTexture(mips []TextureMip, format vk.Format) (vk.Image, vk.ImageView, error) {
	return nil, nil, nil
}

// EnsureTexture must return a fallback slot synchronously on first call,
// never blocking the frame on the background decode (spec.md §5 item 1).
func TestBindlessArrayEnsureTextureReturnsFallbackSynchronously(t *testing.T) {
	streamer := NewTextureStreamer(fakeBlobStore{}, fakeUploader{}, 1)
	defer streamer.Shutdown()
	b := NewBindlessArray(streamer, StreamedTexture{}, StreamedTexture{})

	idx := b.EnsureTexture("brick.tex", TextureKindAlbedo, vk.FormatR8g8b8a8Unorm)
	require.Equal(t, FallbackAlbedoIndex, idx)

	idx = b.EnsureTexture("brick_n.tex", TextureKindNormal, vk.FormatR8g8b8a8Unorm)
	require.Equal(t, FallbackNormalIndex, idx)
}

// A failed load must permanently record the fallback for that name so
// later callers stop retrying it (spec.md §7's texture-load-failure
// taxonomy).
func TestBindlessArrayRecordsPermanentFallbackOnFailure(t *testing.T) {
	streamer := NewTextureStreamer(fakeBlobStore{fail: map[string]bool{"missing.tex": true}}, fakeUploader{}, 1)
	defer streamer.Shutdown()
	b := NewBindlessArray(streamer, StreamedTexture{}, StreamedTexture{})

	b.EnsureTexture("missing.tex", TextureKindAlbedo, vk.FormatR8g8b8a8Unorm)
	require.Eventually(t, func() bool {
		b.Poll()
		return b.failed["missing.tex"]
	}, time.Second, time.Millisecond, "load must fail and be recorded")
}
