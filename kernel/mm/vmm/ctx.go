package vmm

import (
	"unsafe"

	"github.com/kitan0516/matrix/kernel"
	"github.com/kitan0516/matrix/kernel/cpu"
	"github.com/kitan0516/matrix/kernel/mm"
	"github.com/kitan0516/matrix/kernel/mm/kheap"
	"github.com/kitan0516/matrix/kernel/sync"
)

// maxContexts bounds the number of simultaneously live address spaces.
// This is an educational, single-core kernel with no dynamic Go allocator
// available once it leaves bootstrap, so Ctx values live in a fixed-size
// pool rather than behind a runtime allocation.
const maxContexts = 64

// Ctx is an address space: a page directory, its physical base register
// value, and a mutual-exclusion lock guarding mutation of non-kernel-range
// entries.
type Ctx struct {
	dir  *PageDirectory
	pdbr uint32
	lock sync.Spinlock

	inUse bool
}

var (
	// kernelCtx is the single, process-wide kernel address space. It is
	// populated once by InitMMU and never destroyed.
	kernelCtx Ctx

	// currentCtx is the per-core "active address space" pointer. It is
	// nil until the first call to SwitchCtx.
	currentCtx *Ctx

	ctxPool     [maxContexts]Ctx
	ctxPoolLock sync.Spinlock
)

// Test seams; overridden in tests, automatically inlined in the kernel
// build.
var (
	kheapAllocAlignedFn = kheap.AllocAligned
	loadPDBRFn          = cpu.LoadPDBR
	enablePagingFn      = cpu.EnablePaging
	disableIRQsFn       = cpu.DisableInterrupts
	restoreIRQsFn       = cpu.RestoreInterrupts
)

// KernelCtx returns the singleton kernel address space.
func KernelCtx() *Ctx {
	return &kernelCtx
}

// IsKernelCtx reports whether ctx is the singleton kernel address space.
func IsKernelCtx(ctx *Ctx) bool {
	return ctx == &kernelCtx
}

// CreateCtx allocates a directory-backed address space with no mappings
// installed. It returns ErrNoMem if the context pool is exhausted; if the
// kernel heap cannot supply the directory, the heap's own error is returned
// unchanged.
func CreateCtx() (*Ctx, *kernel.Error) {
	ctxPoolLock.Acquire()
	var slot *Ctx
	for i := range ctxPool {
		if !ctxPool[i].inUse {
			slot = &ctxPool[i]
			slot.inUse = true
			break
		}
	}
	ctxPoolLock.Release()
	if slot == nil {
		return nil, ErrNoMem
	}

	virtAddr, physAddr, err := kheapAllocAlignedFn(unsafe.Sizeof(PageDirectory{}))
	if err != nil {
		ctxPoolLock.Acquire()
		slot.inUse = false
		ctxPoolLock.Release()
		return nil, err
	}

	kernel.Memset(virtAddr, 0, unsafe.Sizeof(PageDirectory{}))
	slot.dir = (*PageDirectory)(unsafe.Pointer(virtAddr))
	slot.pdbr = uint32(physAddr)
	slot.lock = sync.Spinlock{}

	return slot, nil
}

// DestroyCtx releases ctx back to the pool, reclaiming the physical frames
// backing any page table this context exclusively owned. It is a fatal
// error to destroy the kernel context or the context currently installed
// on this core - callers must switch away first.
//
// Reclaiming the kernel-heap-backed directory/table memory itself is out
// of scope: kernel/mm/kheap is a placement allocator with no free path,
// matching this kernel's documented non-goal of "reclamation beyond
// freeing a destroyed address space" at the frame level.
func DestroyCtx(ctx *Ctx) {
	kernel.Assert(ctx != &kernelCtx, errDestroyKernelCtx)
	kernel.Assert(ctx != currentCtx, errDestroyActiveCtx)

	for i := 0; i < mm.EntriesPerTable; i++ {
		table := ctx.dir.ptbl[i]
		if table == nil || table == kernelCtx.dir.ptbl[i] {
			continue
		}
		freeTableFrames(table)
	}

	ctxPoolLock.Acquire()
	ctx.inUse = false
	ctxPoolLock.Release()
}

func freeTableFrames(table *PageTable) {
	for i := range table.pte {
		if table.pte[i].HasFlags(FlagPresent) {
			mm.FreeFrame(table.pte[i].Frame())
		}
	}
}

// SwitchCtx installs ctx as the active address space. It is a no-op if ctx
// is already active. A nil ctx leaves the installed context untouched -
// kernel threads with no address space of their own rely on kernel
// mappings being identical across every context.
func SwitchCtx(ctx *Ctx) {
	if ctx == nil || ctx == currentCtx {
		return
	}

	prevState := disableIRQsFn()
	currentCtx = ctx
	loadPDBRFn(ctx.pdbr)
	enablePagingFn()
	restoreIRQsFn(prevState)
}
