package vmm

import (
	"testing"
	"unsafe"

	"github.com/kitan0516/matrix/kernel"
	"github.com/kitan0516/matrix/kernel/mm"
)

// backingAllocator hands out successive, distinct page-aligned-enough
// backing memory from a pre-sized pool, standing in for kernel/mm/kheap
// during bootstrap tests.
func backingAllocator(poolSize int) func(uintptr) (uintptr, uintptr, *kernel.Error) {
	pool := make([]PageDirectory, poolSize)
	i := 0
	return func(uintptr) (uintptr, uintptr, *kernel.Error) {
		if i >= len(pool) {
			return 0, 0, ErrNoMem
		}
		addr := uintptr(unsafe.Pointer(&pool[i]))
		i++
		return addr, addr, nil
	}
}

func TestInitMMUBringsUpKernelContext(t *testing.T) {
	origAlloc, origLoadPDBR, origEnablePaging, origDisable, origRestore :=
		kheapAllocAlignedFn, loadPDBRFn, enablePagingFn, disableIRQsFn, restoreIRQsFn
	origKernelDir, origCurrent, origLimit := kernelCtx.dir, currentCtx, identityMapLimit
	t.Cleanup(func() {
		kheapAllocAlignedFn = origAlloc
		loadPDBRFn = origLoadPDBR
		enablePagingFn = origEnablePaging
		disableIRQsFn = origDisable
		restoreIRQsFn = origRestore
		kernelCtx.dir = origKernelDir
		currentCtx = origCurrent
		identityMapLimit = origLimit
		mm.SetFrameAllocator(nil, nil)
	})

	kheapAllocAlignedFn = backingAllocator(64)
	disableIRQsFn = func() uint32 { return 0 }
	restoreIRQsFn = func(uint32) {}

	next := mm.Frame(0)
	mm.SetFrameAllocator(func() (mm.Frame, *kernel.Error) {
		next++
		return next, nil
	}, func(mm.Frame) {})

	var loadedPDBR uint32
	loadPDBRFn = func(pdbr uint32) { loadedPDBR = pdbr }
	pagingEnabled := false
	enablePagingFn = func() { pagingEnabled = true }

	if err := InitMMU(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if kernelCtx.dir == nil {
		t.Fatal("expected InitMMU to populate the kernel directory")
	}
	if loadedPDBR != kernelCtx.pdbr {
		t.Fatalf("expected SwitchCtx to load the kernel PDBR %x; got %x", kernelCtx.pdbr, loadedPDBR)
	}
	if !pagingEnabled {
		t.Fatal("expected InitMMU's final SwitchCtx to enable paging")
	}
	if currentCtx != &kernelCtx {
		t.Fatal("expected the kernel context to become the active context")
	}
	if identityMapLimit == 0 {
		t.Fatal("expected identityMapLimit to be set to a non-zero bound")
	}
}
