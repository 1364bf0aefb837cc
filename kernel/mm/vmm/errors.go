package vmm

import "github.com/kitan0516/matrix/kernel"

var (
	// ErrInval is returned for bad alignment, zero size, a missing
	// permission flag, or an unmap of a page that was never mapped.
	ErrInval = &kernel.Error{Module: "vmm", Message: "invalid argument"}

	// ErrUnsupported is returned when Map is called without FlagFixed;
	// non-fixed placement is not implemented.
	ErrUnsupported = &kernel.Error{Module: "vmm", Message: "unsupported mapping request"}

	// ErrNoMem is returned by CreateCtx when the context pool is
	// exhausted. Exhaustion of the frame allocator or the kernel heap is
	// not reported as ErrNoMem: that allocator's own error is returned to
	// the caller unchanged.
	ErrNoMem = &kernel.Error{Module: "vmm", Message: "out of memory"}

	errDestroyKernelCtx = &kernel.Error{Module: "vmm", Message: "cannot destroy the kernel context"}
	errDestroyActiveCtx = &kernel.Error{Module: "vmm", Message: "cannot destroy the currently installed context"}
	errUnsafeFrameCopy   = &kernel.Error{Module: "vmm", Message: "copy_frame called from a non identity-mapped stack"}
	errPageFault         = &kernel.Error{Module: "vmm", Message: "unrecoverable page fault"}
)
