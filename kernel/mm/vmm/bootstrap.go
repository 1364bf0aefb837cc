package vmm

import (
	"unsafe"

	"github.com/kitan0516/matrix/kernel"
	"github.com/kitan0516/matrix/kernel/irq"
	"github.com/kitan0516/matrix/kernel/kfmt"
	"github.com/kitan0516/matrix/kernel/mm"
	"github.com/kitan0516/matrix/kernel/mm/kheap"
)

// identityMapLimit is the exclusive upper bound of the identity-mapped,
// supervisor-read-only region InitMMU establishes before the first
// SwitchCtx. copyPhysicalFrame asserts the running stack is below this
// limit before it turns paging off.
var identityMapLimit uintptr

// InitMMU brings up the kernel address space and installs it as the active
// context, transitioning the system from the boot loader's identity-mapped
// memory to full paging. The ordering below is load-bearing: every byte of
// memory already consumed at this point (boot code, boot stack, the
// placement heap used to build the tables themselves) must be mapped
// before paging is switched on, or the first instruction fetch after
// SwitchCtx faults with no handler able to recover it.
//
//  1. allocate the kernel page directory
//  2. materialize the page tables covering the kernel heap and physical-map
//     regions, so later kheap growth never needs a fresh table under paging
//  3. identity-map [0, kheap placement pointer + PageSize) supervisor,
//     read-only
//  4. back the kernel-heap and physical-map regions with real frames,
//     supervisor, read-only
//  5. register the page fault handler
//  6. switch to the kernel context, enabling paging
func InitMMU() *kernel.Error {
	virtAddr, physAddr, err := kheapAllocAlignedFn(unsafe.Sizeof(PageDirectory{}))
	if err != nil {
		return err
	}
	kernel.Memset(virtAddr, 0, unsafe.Sizeof(PageDirectory{}))
	kernelCtx.dir = (*PageDirectory)(unsafe.Pointer(virtAddr))
	kernelCtx.pdbr = uint32(physAddr)

	for _, region := range [...]struct{ base, size uintptr }{
		{mm.KernelKmemBase, mm.KernelKmemSize},
		{mm.KernelPmapBase, mm.KernelPmapSize},
	} {
		for v := region.base; v < region.base+region.size; v += mm.PageSize * mm.EntriesPerTable {
			if _, err := GetPage(&kernelCtx, v, true, 0); err != nil {
				return err
			}
		}
	}

	mapLimit := kheap.PlacementAddr() + mm.PageSize
	mapLimit &^= mm.PageOffsetMask
	if err := identityMapRange(0, mapLimit); err != nil {
		return err
	}
	identityMapLimit = mapLimit

	// The physical-map region is identity-mapped by definition. The
	// kernel-heap region instead gets freshly allocated frames: its
	// virtual addresses (0xE0000000+) have no matching physical memory.
	if err := identityMapRange(mm.KernelPmapBase, mm.KernelPmapBase+mm.KernelPmapSize); err != nil {
		return err
	}
	if err := backRegionWithFrames(mm.KernelKmemBase, mm.KernelKmemSize); err != nil {
		return err
	}

	irq.HandleExceptionWithCode(irq.PageFault, faultHandler)

	kfmt.Printf("[vmm] kernel context ready, identity map up to 0x%x\n", uint32(identityMapLimit))
	SwitchCtx(&kernelCtx)
	return nil
}

// identityMapRange maps every page in [start, end) to the physical frame
// of the same address, supervisor-only and read-only. It is only valid
// before paging is enabled, while virtual and physical addresses coincide.
func identityMapRange(start, end uintptr) *kernel.Error {
	for v := start; v < end; v += mm.PageSize {
		pte, err := GetPage(&kernelCtx, v, true, 0)
		if err != nil {
			return err
		}
		*pte = 0
		if err := pte.SetFrame(mm.FrameFromAddress(v)); err != nil {
			return err
		}
		pte.SetFlags(FlagPresent)
	}
	return nil
}

// backRegionWithFrames maps every page in [start, start+size) to a freshly
// allocated physical frame, supervisor-only and read-only.
func backRegionWithFrames(start, size uintptr) *kernel.Error {
	for v := start; v < start+size; v += mm.PageSize {
		pte, err := GetPage(&kernelCtx, v, true, 0)
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
	}
	return nil
}
