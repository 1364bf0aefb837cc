package vmm

import (
	"unsafe"

	"github.com/kitan0516/matrix/kernel"
	"github.com/kitan0516/matrix/kernel/cpu"
	"github.com/kitan0516/matrix/kernel/mm"
)

// clonedPTEFlags is the subset of flags carried across a fork deep-copy.
const clonedPTEFlags = FlagPresent | FlagRW | FlagUser | FlagAccessed | FlagDirty

var (
	copyFrameFn    = copyFrame
	stackPointerFn = cpu.StackPointer
)

// CloneCtx populates dst, a freshly created address space, from src. Per
// directory slot i:
//
//   - if src has no table at i, dst is left with no table at i;
//   - if the table at i is the kernel context's table (shared kernel
//     range), dst aliases it rather than copying;
//   - otherwise a new table is allocated for dst and every present source
//     PTE is deep-copied: a fresh frame is allocated, the tracked flags are
//     copied, and the frame contents are physically copied.
func CloneCtx(dst, src *Ctx) *kernel.Error {
	dst.lock.Acquire()
	defer dst.lock.Release()

	for i := 0; i < mm.EntriesPerTable; i++ {
		srcTable := src.dir.ptbl[i]
		if srcTable == nil {
			continue
		}

		if srcTable == kernelCtx.dir.ptbl[i] {
			dst.dir.ptbl[i] = srcTable
			dst.dir.pde[i] = src.dir.pde[i]
			continue
		}

		dstTable, physAddr, err := cloneTable(srcTable)
		if err != nil {
			return err
		}

		pde, err := NewPDE(physAddr, FlagPresent|FlagRW|FlagUser)
		if err != nil {
			return err
		}

		dst.dir.ptbl[i] = dstTable
		dst.dir.pde[i] = pde
	}

	return nil
}

func cloneTable(src *PageTable) (*PageTable, uint32, *kernel.Error) {
	virtAddr, physAddr, err := kheapAllocAlignedFn(unsafe.Sizeof(PageTable{}))
	if err != nil {
		return nil, 0, err
	}
	kernel.Memset(virtAddr, 0, unsafe.Sizeof(PageTable{}))
	dstTable := (*PageTable)(unsafe.Pointer(virtAddr))

	for i := range src.pte {
		srcPTE := src.pte[i]
		if !srcPTE.HasFlags(FlagPresent) {
			continue
		}

		frame, err := mm.AllocFrame()
		if err != nil {
			return nil, 0, err
		}

		var dstPTE PTE
		dstPTE.SetFlags(Flag(uint32(srcPTE)) & clonedPTEFlags)
		if err := dstPTE.SetFrame(frame); err != nil {
			return nil, 0, err
		}

		copyPhysicalFrame(frame, srcPTE.Frame())
		dstTable.pte[i] = dstPTE
	}

	return dstTable, uint32(physAddr), nil
}

// copyPhysicalFrame copies the contents of src into dst using the
// black-box copy_frame assembly helper. The helper briefly disables
// paging to address both frames physically, so it requires interrupts
// disabled and a kernel stack whose pages are identity-mapped; the latter
// is asserted rather than silently trusted, per the open design question
// this behavior originates from.
func copyPhysicalFrame(dst, src mm.Frame) {
	prevState := disableIRQsFn()
	kernel.Assert(stackPointerFn() < uint32(identityMapLimit), errUnsafeFrameCopy)
	copyFrameFn(uint32(dst.Address()), uint32(src.Address()))
	restoreIRQsFn(prevState)
}
