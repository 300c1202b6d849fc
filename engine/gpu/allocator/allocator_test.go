package allocator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Pool sizing and the dedicated-allocation threshold are pure functions
// of heap size (spec.md §4.1) and don't require a live VkDevice, so they
// are exercised directly here. Allocate/BindBuffer/BindImage need a real
// driver and are covered by the property tests against Pool instead (see
// pool_test.go) plus DESIGN.md's note on what is left untested without a
// GPU.
func TestNewAllocatorPoolSizing(t *testing.T) {
	// Heap <= 1 GiB: pool_size = heap_size/8, aligned up to 32 bytes.
	small := New(nil, nil, 0, 512*1024*1024, false, 1)
	require.Equal(t, alignUp(512*1024*1024/8, 32), small.poolSize)
	require.Equal(t, small.poolSize/8, small.dedicatedThreshold)

	// Heap > 1 GiB: pool_size fixed at 128 MiB.
	large := New(nil, nil, 0, 4*giB, false, 1)
	require.Equal(t, uint64(largePoolSize), large.poolSize)
}
