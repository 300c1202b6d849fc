package allocator

// allocateBlock implements spec.md §4.1's allocation algorithm: round up,
// search the bitset two-stage free map, reserve alignment padding against
// the chosen block's predecessor (or split a dedicated padding block),
// then split the residual tail back into the pool.
//
// Returns nil if the pool has no block large enough; callers fall back to
// growing the pool or a dedicated allocation.
func (p *Pool) allocateBlock(requestSize, alignment uint64) *MemoryBlock {
	requestSize = roundToSizeClass(requestSize)
	searchSize := roundToSizeClass(requestSize + alignment)

	b := p.findSuitable(searchSize)
	if b == nil {
		return nil
	}
	p.unlinkFree(b)

	alignedOffset := alignUp(b.Offset, alignment)
	if padding := alignedOffset - b.Offset; padding > 0 {
		prev := b.physPrev
		if prev != b && prev.IsFree && prev.Offset+prev.Size == b.Offset {
			p.unlinkFree(prev)
			prev.Size += padding
			b.Offset += padding
			b.Size -= padding
			p.linkFree(prev)
		} else {
			pad := &MemoryBlock{Offset: b.Offset, Size: padding}
			insertPhysicalAfter(prev, pad)
			b.Offset += padding
			b.Size -= padding
			p.linkFree(pad)
		}
	}

	if b.Offset%alignment != 0 {
		panic("allocator: alignment invariant violated after padding reservation")
	}
	if b.Size < requestSize {
		panic("allocator: residual block smaller than request after alignment")
	}

	p.splitTail(b, requestSize)
	b.IsFree = false
	p.usedSize += b.Size
	return b
}

// freeBlock marks b free and greedily coalesces with physically adjacent
// free neighbours, skipping the wrap-around edge of the circular list.
func (p *Pool) freeBlock(b *MemoryBlock) {
	p.usedSize -= b.Size

	if next := b.physNext; next != b && next.IsFree && b.Offset+b.Size == next.Offset {
		p.unlinkFree(next)
		b.Size += next.Size
		unlinkPhysical(next)
	}
	if prev := b.physPrev; prev != b && prev.IsFree && prev.Offset+prev.Size == b.Offset {
		p.unlinkFree(prev)
		prev.Size += b.Size
		unlinkPhysical(b)
		b = prev
	}
	p.linkFree(b)
}
