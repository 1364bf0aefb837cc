// Package kheap implements the kernel heap: a placement-style allocator
// that hands out kernel objects before and during MMU bootstrap, when no
// general-purpose allocator can exist yet (the Go runtime's own allocator
// is unavailable in this freestanding build).
//
// Mirrors the original kernel's kmem_alloc/kmem_alloc_p pair: a bump
// pointer advancing through memory that is, at the time these calls
// matter, identity-mapped (virtual address == physical address). This is
// why AllocAligned can hand back the same value as both the virtual and
// the physical address.
package kheap

import (
	"github.com/kitan0516/matrix/kernel"
	"github.com/kitan0516/matrix/kernel/mm"
	"github.com/kitan0516/matrix/kernel/sync"
)

var (
	lock sync.Spinlock

	placementAddr uintptr
	limit         uintptr
)

var errOutOfMemory = &kernel.Error{Module: "kheap", Message: "placement heap exhausted"}

// Init sets the start and (exclusive) upper bound of the region the
// placement allocator bump-allocates from. It must be called once, before
// the first call to Alloc/AllocAligned.
func Init(start, end uintptr) {
	placementAddr = start
	limit = end
}

// PlacementAddr returns the current placement pointer, i.e. the first
// byte of memory not yet handed out. Bootstrap uses this to know how much
// of low memory must be identity-mapped before paging is enabled.
func PlacementAddr() uintptr {
	lock.Acquire()
	defer lock.Release()
	return placementAddr
}

// Alloc reserves size bytes and returns their virtual address, which is the
// current placement pointer. Alloc applies no alignment of its own.
func Alloc(size uintptr) (uintptr, *kernel.Error) {
	lock.Acquire()
	defer lock.Release()
	return alloc(size)
}

// AllocAligned reserves size bytes starting at a page boundary and returns
// both the virtual address and the physical address of the allocation.
// Callers that need a page-aligned kernel object with a known physical
// address (a page table, a page directory) use this instead of Alloc.
func AllocAligned(size uintptr) (virtAddr uintptr, physAddr uintptr, err *kernel.Error) {
	lock.Acquire()
	defer lock.Release()

	if placementAddr&mm.PageOffsetMask != 0 {
		placementAddr = (placementAddr &^ mm.PageOffsetMask) + mm.PageSize
	}

	addr, err := alloc(size)
	if err != nil {
		return 0, 0, err
	}
	return addr, addr, nil
}

func alloc(size uintptr) (uintptr, *kernel.Error) {
	if limit != 0 && placementAddr+size > limit {
		return 0, errOutOfMemory
	}

	addr := placementAddr
	placementAddr += size
	return addr, nil
}
