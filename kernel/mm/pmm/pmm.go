// Package pmm implements the physical frame allocator that the vmm package
// and kernel heap rely on to back their mappings with real memory. It
// satisfies the mm.FrameAllocatorFn/mm.FrameDeallocatorFn contract.
package pmm

import (
	"github.com/kitan0516/matrix/kernel"
	"github.com/kitan0516/matrix/kernel/kfmt"
	"github.com/kitan0516/matrix/kernel/mm"
	"github.com/kitan0516/matrix/kernel/sync"
)

// maxFrames bounds the number of frames this allocator can track. An
// educational kernel targeting a fixed-size emulated machine does not need
// a dynamically sized free list; 256K frames covers 1GiB of physical
// memory, well above what this kernel's memory layout (see kernel/mm
// constants) ever addresses.
const maxFrames = 1 << 18

// noFrame terminates the free list.
const noFrame = ^uint32(0)

var (
	errOutOfMemory = &kernel.Error{Module: "pmm", Message: "no free physical frames"}
	errBadFrame    = &kernel.Error{Module: "pmm", Message: "frame not owned by this allocator"}

	lock sync.Spinlock

	// freeList[i] holds the index of the next free frame after frame i,
	// chained starting at freeHead. This is the same free-list-of-indices
	// scheme biscuit's Physmem_t uses for its per-CPU/global free lists,
	// simplified to a single list since this kernel runs on one core.
	freeList [maxFrames]uint32

	startFrame mm.Frame
	frameCount uint32
	freeHead   uint32
	freeCount  uint32
)

// Init prepares the allocator to hand out frames [startFrame, startFrame+count)
// and registers it as the kernel's active frame allocator. It must be called
// exactly once, before any code calls mm.AllocFrame.
func Init(start mm.Frame, count uint32) *kernel.Error {
	if count > maxFrames {
		kfmt.Printf("[pmm] clamping %d frames to allocator capacity %d\n", count, uint32(maxFrames))
		count = maxFrames
	}

	startFrame = start
	frameCount = count
	freeCount = count

	for i := uint32(0); i < count; i++ {
		if i == count-1 {
			freeList[i] = noFrame
		} else {
			freeList[i] = i + 1
		}
	}
	freeHead = 0

	mm.SetFrameAllocator(allocFrame, freeFrame)
	kfmt.Printf("[pmm] tracking %d frames starting at frame 0x%x\n", count, uint32(start))
	return nil
}

func allocFrame() (mm.Frame, *kernel.Error) {
	lock.Acquire()
	defer lock.Release()

	if freeHead == noFrame {
		return mm.InvalidFrame, errOutOfMemory
	}

	idx := freeHead
	freeHead = freeList[idx]
	freeCount--

	return startFrame + mm.Frame(idx), nil
}

func freeFrame(f mm.Frame) {
	lock.Acquire()
	defer lock.Release()

	if f < startFrame || f >= startFrame+mm.Frame(frameCount) {
		kernel.Assert(false, errBadFrame)
		return
	}

	idx := uint32(f - startFrame)
	freeList[idx] = freeHead
	freeHead = idx
	freeCount++
}

// Free returns the number of frames currently available for allocation.
func Free() uint32 {
	lock.Acquire()
	defer lock.Release()
	return freeCount
}
