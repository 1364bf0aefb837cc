package vmm

import (
	"unsafe"

	"github.com/kitan0516/matrix/kernel"
	"github.com/kitan0516/matrix/kernel/cpu"
	"github.com/kitan0516/matrix/kernel/mm"
)

// Flags controls the permissions and placement mode of a Map call. The
// numeric values are part of the external interface and must stay
// disjoint bit positions.
type Flags uint8

const (
	// FlagRead requests a readable mapping. EXEC without WRITE still maps
	// read-only on this architecture - there is no NX bit, so EXEC never
	// grants write access on its own.
	FlagRead Flags = 1
	// FlagWrite requests a writable mapping.
	FlagWrite Flags = 2
	// FlagExec requests an executable mapping. There is no instruction-fetch
	// restriction on this architecture, so it adds nothing to
	// FlagRead/FlagWrite; on its own it satisfies Map's access-flag check
	// and yields a read-only mapping.
	FlagExec Flags = 4
	// FlagFixed requests a mapping is placed exactly at the caller's
	// supplied start address. It is currently the only supported
	// placement mode; Map without it fails with ErrUnsupported.
	FlagFixed Flags = 8
)

var invalidateTLBFn = cpu.InvalidateTLB

// GetPage returns the PTE handle for virt within ctx. If no page table
// covers virt and makeTable is true, a new page-aligned page table is
// allocated, zeroed, and installed at the corresponding directory slot
// with present|rw|user so user-mode code can traverse it - actual per-page
// permissions are what gate access, as set by Map. If no table covers virt
// and makeTable is false, GetPage returns (nil, nil).
//
// flags is accepted but unused, matching the original kernel's get_page
// contract where the equivalent parameter is always passed as zero.
func GetPage(ctx *Ctx, virt uintptr, makeTable bool, flags Flags) (*PTE, *kernel.Error) {
	pageIdx := virt >> mm.PageShift
	tblIdx := pageIdx % mm.EntriesPerTable
	dirIdx := pageIdx / mm.EntriesPerTable

	if dirIdx >= mm.EntriesPerTable {
		return nil, ErrInval
	}

	if ctx.dir.ptbl[dirIdx] != nil {
		return &ctx.dir.ptbl[dirIdx].pte[tblIdx], nil
	}
	if !makeTable {
		return nil, nil
	}

	virtAddr, physAddr, err := kheapAllocAlignedFn(unsafe.Sizeof(PageTable{}))
	if err != nil {
		return nil, err
	}
	kernel.Memset(virtAddr, 0, unsafe.Sizeof(PageTable{}))

	table := (*PageTable)(unsafe.Pointer(virtAddr))
	ctx.dir.ptbl[dirIdx] = table

	pde, err := NewPDE(uint32(physAddr), FlagPresent|FlagRW|FlagUser)
	if err != nil {
		return nil, err
	}
	ctx.dir.pde[dirIdx] = pde

	return &table.pte[tblIdx], nil
}

// Map installs a mapping for every page in [start, start+size) within ctx,
// allocating a fresh physical frame per page via the registered frame
// allocator.
//
// size must be non-zero and a multiple of mm.PageSize, flags must include
// at least one of FlagRead/FlagWrite/FlagExec, and FlagFixed must be set -
// non-fixed placement is not implemented. With FlagFixed, start must be
// page-aligned.
//
// Map does not detect overlap with existing mappings, and leaves no
// rollback hook: a failure partway through leaves ctx with whichever pages
// up to that point were already mapped.
func Map(ctx *Ctx, start, size uintptr, flags Flags) *kernel.Error {
	if size == 0 || size%mm.PageSize != 0 {
		return ErrInval
	}
	if flags&(FlagRead|FlagWrite|FlagExec) == 0 {
		return ErrInval
	}
	if flags&FlagFixed == 0 {
		return ErrUnsupported
	}
	if start%mm.PageSize != 0 {
		return ErrInval
	}

	ctx.lock.Acquire()
	defer ctx.lock.Release()

	for v := start; v < start+size; v += mm.PageSize {
		pte, err := GetPage(ctx, v, true, 0)
		if err != nil {
			return err
		}

		frame, err := mm.AllocFrame()
		if err != nil {
			return err
		}

		*pte = 0
		if err := pte.SetFrame(frame); err != nil {
			return err
		}
		pte.SetFlags(FlagPresent)
		if !IsKernelCtx(ctx) {
			pte.SetFlags(FlagUser)
		}
		if flags&FlagWrite != 0 {
			pte.SetFlags(FlagRW)
		}
	}

	return nil
}

// Unmap removes the mapping for every page in [start, start+size) within
// ctx, freeing the backing frame and invalidating the local TLB entry for
// each page. start and size must both be page-aligned and size non-zero.
// Unmapping a page with no existing mapping fails with ErrInval; empty
// page tables are not reclaimed.
func Unmap(ctx *Ctx, start, size uintptr) *kernel.Error {
	if size == 0 || start%mm.PageSize != 0 || size%mm.PageSize != 0 {
		return ErrInval
	}

	ctx.lock.Acquire()
	defer ctx.lock.Release()

	for v := start; v < start+size; v += mm.PageSize {
		pte, err := GetPage(ctx, v, false, 0)
		if err != nil {
			return err
		}
		if pte == nil || !pte.HasFlags(FlagPresent) {
			return ErrInval
		}

		mm.FreeFrame(pte.Frame())
		*pte = 0
		invalidateTLBFn(uint32(v))
	}

	return nil
}
