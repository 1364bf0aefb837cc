package mm

import (
	"github.com/kitan0516/matrix/kernel"
)

// Frame describes a physical memory page index. On this architecture a
// frame number fits in 20 bits (see vmm.PTE); callers that build a PTE
// from a Frame are responsible for rejecting out-of-range values.
type Frame uintptr

const (
	// InvalidFrame is returned by frame allocators when they fail to
	// reserve the requested frame.
	InvalidFrame = Frame(^uintptr(0))
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of this Frame.
func (f Frame) Address() uintptr {
	return uintptr(f << PageShift)
}

// FrameFromAddress returns a Frame that corresponds to the given physical
// address. This function can handle both page-aligned and non-aligned
// addresses; in the latter case the input address is rounded down to the
// frame that contains it.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame((physAddr & ^(uintptr(PageSize - 1))) >> PageShift)
}

var (
	// allocFrameFn points to the frame allocator function registered via
	// SetFrameAllocator. Overridden by tests.
	allocFrameFn FrameAllocatorFn

	// freeFrameFn points to the frame deallocator function registered via
	// SetFrameAllocator. Overridden by tests.
	freeFrameFn FrameDeallocatorFn
)

// FrameAllocatorFn hands out a single physically-contiguous, unused 4 KiB
// frame identified by its frame number. This is the external contract that
// kernel/mm/pmm satisfies; the vmm package only ever talks to this
// function-shaped seam, never to a concrete allocator type, so it can be
// swapped out by tests.
type FrameAllocatorFn func() (Frame, *kernel.Error)

// FrameDeallocatorFn reclaims a frame previously returned by a
// FrameAllocatorFn so it can be handed out again.
type FrameDeallocatorFn func(Frame)

// SetFrameAllocator registers the frame allocator/deallocator pair that will
// be used by the vmm package whenever new physical frames need to be
// allocated or freed.
func SetFrameAllocator(allocFn FrameAllocatorFn, freeFn FrameDeallocatorFn) {
	allocFrameFn = allocFn
	freeFrameFn = freeFn
}

// AllocFrame allocates a new physical frame using the currently registered
// physical frame allocator.
func AllocFrame() (Frame, *kernel.Error) { return allocFrameFn() }

// FreeFrame reclaims a physical frame using the currently registered
// physical frame allocator.
func FreeFrame(f Frame) { freeFrameFn(f) }

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual address of this Page.
func (p Page) Address() uintptr {
	return uintptr(p << PageShift)
}

// PageFromAddress returns a Page that corresponds to the given virtual
// address. This function can handle both page-aligned and non-aligned
// virtual addresses; in the latter case the input address is rounded down
// to the page that contains it.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr & ^(uintptr(PageSize - 1))) >> PageShift)
}
