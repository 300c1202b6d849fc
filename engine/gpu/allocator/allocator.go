// Package allocator implements a two-level segregated fit (TLSF)
// suballocator over Vulkan device memory heaps, per spec.md §4.1. One
// Allocator instance is created per Vulkan memory type; it owns a list of
// backing VkDeviceMemory pools, each grown at the configured pool size
// (halved only when the driver refuses that size), and falls back to
// dedicated allocations for large requests.
package allocator

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima/engine/core"
)

const giB = 1 << 30
const largePoolSize = 128 * 1024 * 1024

// Requirements mirrors VkMemoryRequirements plus the caller's memory-type
// filter, per spec.md §4.1's allocate contract.
type Requirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

// backingPool pairs a TLSF Pool with the real VkDeviceMemory block it
// suballocates and, for host-visible memory, the pointer it was mapped
// to for the process lifetime.
type backingPool struct {
	pool    *Pool
	memory  vk.DeviceMemory
	mapped  unsafe.Pointer
	size    uint64
}

// Allocation is a caller-owned handle into either a pool block or a
// dedicated VkDeviceMemory allocation. Free is idempotent: a moved-from
// or already-freed Allocation has a nil owner and Free becomes a no-op,
// matching the teacher's null-state-on-destroy idiom throughout
// engine/renderer/vulkan.
type Allocation struct {
	owner  *Allocator
	bp     *backingPool // nil for dedicated allocations
	block  *MemoryBlock // nil for dedicated allocations
	memory vk.DeviceMemory
	offset uint64
	size   uint64
	mapped unsafe.Pointer
}

func (a *Allocation) Memory() vk.DeviceMemory { return a.memory }
func (a *Allocation) Offset() uint64          { return a.offset }
func (a *Allocation) Size() uint64            { return a.size }
func (a *Allocation) MappedPointer() unsafe.Pointer {
	if a.mapped == nil {
		return nil
	}
	return unsafe.Pointer(uintptr(a.mapped) + uintptr(a.offset))
}

// Free releases the allocation back to its owning pool (or destroys the
// dedicated memory object) and clears the Allocation so a repeat call is
// a no-op.
func (a *Allocation) Free() {
	if a == nil || a.owner == nil {
		return
	}
	a.owner.free(a)
	a.owner = nil
}

// Allocator suballocates a single Vulkan memory type's heap. The mutex
// is held across the whole fast path, including the rare slow-path calls
// into the driver (AllocateMemory, MapMemory) when a new pool is grown —
// a production implementation would drop the lock first, but correctness
// does not require it here (spec.md §5).
type Allocator struct {
	mu sync.Mutex

	device                 vk.Device
	allocationCallbacks    *vk.AllocationCallbacks
	memoryTypeIndex        uint32
	hostVisible            bool
	bufferImageGranularity uint64

	poolSize          uint64
	dedicatedThreshold uint64

	pools      []*backingPool
	dedicated  map[*Allocation]vk.DeviceMemory
}

// New creates an allocator for one Vulkan memory type. heapSize is the
// size of the VkMemoryHeap backing this memory type, used to size the
// pool per spec.md §4.1.
func New(device vk.Device, allocationCallbacks *vk.AllocationCallbacks, memoryTypeIndex uint32, heapSize uint64, hostVisible bool, bufferImageGranularity uint64) *Allocator {
	var poolSize uint64
	if heapSize <= giB {
		poolSize = alignUp(heapSize/8, 32)
	} else {
		poolSize = largePoolSize
	}
	if poolSize < MinimumAllocationSize {
		poolSize = MinimumAllocationSize
	}
	return &Allocator{
		device:                 device,
		allocationCallbacks:    allocationCallbacks,
		memoryTypeIndex:        memoryTypeIndex,
		hostVisible:            hostVisible,
		bufferImageGranularity: bufferImageGranularity,
		poolSize:               poolSize,
		dedicatedThreshold:     poolSize / 8,
		dedicated:              make(map[*Allocation]vk.DeviceMemory),
	}
}

// Allocate reserves requirements.Size bytes, per spec.md §4.1's
// allocation algorithm: requests at or above pool_size/8 become
// dedicated allocations; everything else is rounded to a size class and
// searched for in the existing pools, growing a new pool if none has
// room.
func (a *Allocator) Allocate(reqs Requirements) (*Allocation, error) {
	if reqs.MemoryTypeBits&(1<<a.memoryTypeIndex) == 0 {
		return nil, fmt.Errorf("allocator: memory type %d not permitted by requirements bitmask 0x%x", a.memoryTypeIndex, reqs.MemoryTypeBits)
	}
	alignment := reqs.Alignment
	if a.bufferImageGranularity > alignment {
		alignment = a.bufferImageGranularity
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if reqs.Size >= a.dedicatedThreshold {
		return a.allocateDedicated(reqs.Size)
	}

	for _, bp := range a.pools {
		if b := bp.pool.allocateBlock(reqs.Size, alignment); b != nil {
			return a.wrapBlock(bp, b), nil
		}
	}

	bp, err := a.growPool(a.poolSize)
	if err != nil {
		return nil, err
	}
	b := bp.pool.allocateBlock(reqs.Size, alignment)
	if b == nil {
		return nil, fmt.Errorf("allocator: freshly grown pool of %d bytes cannot satisfy request of %d bytes", bp.size, reqs.Size)
	}
	return a.wrapBlock(bp, b), nil
}

// BindBuffer queries reqs via vkGetBufferMemoryRequirements, allocates,
// and binds the result to buffer, matching spec.md §4.1's bind_memory
// contract.
func (a *Allocator) BindBuffer(buffer vk.Buffer) (*Allocation, error) {
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(a.device, buffer, &reqs)
	reqs.Deref()
	alloc, err := a.Allocate(Requirements{Size: reqs.Size, Alignment: reqs.Alignment, MemoryTypeBits: reqs.MemoryTypeBits})
	if err != nil {
		return nil, err
	}
	if res := vk.BindBufferMemory(a.device, buffer, alloc.memory, alloc.offset); res != vk.Success {
		alloc.Free()
		return nil, fmt.Errorf("allocator: vkBindBufferMemory failed: %d", res)
	}
	return alloc, nil
}

// BindImage is the image counterpart of BindBuffer.
func (a *Allocator) BindImage(image vk.Image) (*Allocation, error) {
	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(a.device, image, &reqs)
	reqs.Deref()
	alloc, err := a.Allocate(Requirements{Size: reqs.Size, Alignment: reqs.Alignment, MemoryTypeBits: reqs.MemoryTypeBits})
	if err != nil {
		return nil, err
	}
	if res := vk.BindImageMemory(a.device, image, alloc.memory, alloc.offset); res != vk.Success {
		alloc.Free()
		return nil, fmt.Errorf("allocator: vkBindImageMemory failed: %d", res)
	}
	return alloc, nil
}

func (a *Allocator) wrapBlock(bp *backingPool, b *MemoryBlock) *Allocation {
	return &Allocation{
		owner:  a,
		bp:     bp,
		block:  b,
		memory: bp.memory,
		offset: b.Offset,
		size:   b.Size,
		mapped: bp.mapped,
	}
}

func (a *Allocator) free(alloc *Allocation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if alloc.bp != nil {
		alloc.bp.pool.freeBlock(alloc.block)
		return
	}
	if mem, ok := a.dedicated[alloc]; ok {
		vk.FreeMemory(a.device, mem, a.allocationCallbacks)
		delete(a.dedicated, alloc)
	}
}

func (a *Allocator) allocateDedicated(size uint64) (*Allocation, error) {
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  size,
		MemoryTypeIndex: a.memoryTypeIndex,
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(a.device, &info, a.allocationCallbacks, &mem); res != vk.Success {
		return nil, fmt.Errorf("allocator: dedicated vkAllocateMemory(%d bytes) failed: %d", size, res)
	}
	var mapped unsafe.Pointer
	if a.hostVisible {
		if res := vk.MapMemory(a.device, mem, 0, vk.DeviceSize(size), 0, &mapped); res != vk.Success {
			vk.FreeMemory(a.device, mem, a.allocationCallbacks)
			return nil, fmt.Errorf("allocator: dedicated vkMapMemory failed: %d", res)
		}
	}
	alloc := &Allocation{owner: a, memory: mem, offset: 0, size: size, mapped: mapped}
	a.dedicated[alloc] = mem
	return alloc, nil
}

// growPool allocates a new backing VkDeviceMemory block of the requested
// size, halving the target up to six times on allocation failure before
// giving up entirely (spec.md §7's allocator-exhaustion taxonomy).
func (a *Allocator) growPool(targetSize uint64) (*backingPool, error) {
	size := targetSize
	var lastErr error
	for attempt := 0; attempt <= 6; attempt++ {
		info := vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  size,
			MemoryTypeIndex: a.memoryTypeIndex,
		}
		var mem vk.DeviceMemory
		res := vk.AllocateMemory(a.device, &info, a.allocationCallbacks, &mem)
		if res == vk.Success {
			var mapped unsafe.Pointer
			if a.hostVisible {
				if mres := vk.MapMemory(a.device, mem, 0, vk.DeviceSize(size), 0, &mapped); mres != vk.Success {
					vk.FreeMemory(a.device, mem, a.allocationCallbacks)
					return nil, fmt.Errorf("allocator: vkMapMemory failed on new pool: %d", mres)
				}
			}
			bp := &backingPool{pool: NewPool(size), memory: mem, mapped: mapped, size: size}
			a.pools = append(a.pools, bp)
			core.LogDebug("allocator: grew pool for memory type %d to %d bytes", a.memoryTypeIndex, size)
			return bp, nil
		}
		lastErr = fmt.Errorf("vkAllocateMemory(%d bytes) failed: %d", size, res)
		core.LogWarn("allocator: pool growth to %d bytes failed (%s), halving", size, lastErr)
		size /= 2
		if size < MinimumAllocationSize {
			break
		}
	}
	return nil, fmt.Errorf("allocator: exhausted after 6 halvings for memory type %d: %w", a.memoryTypeIndex, lastErr)
}

// Stats reports aggregate used/total bytes across every backing pool,
// for the frame-metrics overlay (engine/core/metrics.go).
type Stats struct {
	Used  uint64
	Total uint64
	Pools int
}

func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Stats{Pools: len(a.pools)}
	for _, bp := range a.pools {
		s.Used += bp.pool.UsedSize()
		s.Total += bp.pool.TotalSize()
	}
	return s
}

// Validate runs Pool.Validate across every backing pool; intended for
// assertions in debug builds and for the property-based test suite.
func (a *Allocator) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, bp := range a.pools {
		if err := bp.pool.Validate(); err != nil {
			return fmt.Errorf("allocator: pool %d: %w", i, err)
		}
	}
	return nil
}
