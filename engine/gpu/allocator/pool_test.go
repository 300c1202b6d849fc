package allocator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolAllocateFreeReverseOrderFullyCoalesces(t *testing.T) {
	const poolSize = 16 * 1024 * 1024
	p := NewPool(poolSize)

	var blocks []*MemoryBlock
	for i := 0; i < 100; i++ {
		b := p.allocateBlock(4096, 256)
		require.NotNil(t, b, "allocation %d should succeed", i)
		require.Zero(t, b.Offset%256)
		blocks = append(blocks, b)
	}
	require.NoError(t, p.Validate())

	for i := len(blocks) - 1; i >= 0; i-- {
		p.freeBlock(blocks[i])
	}

	require.NoError(t, p.Validate())
	require.Equal(t, uint64(poolSize), p.LargestFreeBlockSize())
	require.Zero(t, p.UsedSize())
}

func TestPoolAllocateTwoFreeSecondThenFirstFullyCoalesces(t *testing.T) {
	const poolSize = 16 * 1024 * 1024
	p := NewPool(poolSize)

	a := p.allocateBlock(4096, 256)
	b := p.allocateBlock(4096, 256)
	require.NotNil(t, a)
	require.NotNil(t, b)

	p.freeBlock(b)
	p.freeBlock(a)

	require.NoError(t, p.Validate())
	require.Equal(t, uint64(poolSize), p.LargestFreeBlockSize())
}

func TestPoolAlignmentIsRespected(t *testing.T) {
	p := NewPool(16 * 1024 * 1024)
	for _, align := range []uint64{256, 512, 1024, 4096} {
		b := p.allocateBlock(1000, align)
		require.NotNil(t, b)
		require.Zero(t, b.Offset%align, "align=%d offset=%d", align, b.Offset)
		require.GreaterOrEqual(t, b.Size, uint64(1000))
	}
	require.NoError(t, p.Validate())
}

func TestPoolCoversWholeRangeNoGaps(t *testing.T) {
	p := NewPool(1024 * 1024)
	var blocks []*MemoryBlock
	for i := 0; i < 50; i++ {
		b := p.allocateBlock(uint64(256*(i%7+1)), 256)
		if b == nil {
			break
		}
		blocks = append(blocks, b)
		require.NoError(t, p.Validate())
	}
	for _, b := range blocks {
		p.freeBlock(b)
		require.NoError(t, p.Validate())
	}
}

func TestMappingFirstLevelNonDecreasing(t *testing.T) {
	prevFl, _ := mapping(MinimumAllocationSize)
	for size := MinimumAllocationSize + 1; size < MinimumAllocationSize*1000; size += 37 {
		fl, sl := mapping(size)
		require.GreaterOrEqual(t, fl, prevFl, "fl should never decrease for increasing size: size=%d", size)
		require.Less(t, sl, slCount)
		prevFl = fl
	}
}
