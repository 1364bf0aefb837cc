package mm

// Page size constants for the 32-bit protected-mode address space this
// kernel targets: two-level paging, 4 KiB pages, 1024 entries per table.
const (
	// PageShift is the base-2 exponent of PageSize.
	PageShift = 12

	// PageSize is the size in bytes of a single page/frame.
	PageSize = 1 << PageShift

	// PageOffsetMask masks the in-page offset bits of an address.
	PageOffsetMask = PageSize - 1

	// EntriesPerTable is the number of entries in a page table or page
	// directory on this architecture (1024 32-bit entries == 4 KiB).
	EntriesPerTable = 1024
)

// Fixed memory layout constants. These are a contract with the boot code
// and linker script and must not be changed independently of them.
const (
	// UserBase is the base of the user virtual address range.
	UserBase = 0x00000000
	// UserSize is the length of the user virtual address range.
	UserSize = 0xBFFFF000

	// KernelBase is the base of the kernel virtual address range, shared
	// and identical across every address space.
	KernelBase = 0xC0000000
	// KernelSize is the length of the kernel virtual address range.
	KernelSize = 0x40000000

	// KernelPmapBase is the base of the kernel's physical-map
	// (identity-mapped) region.
	KernelPmapBase = 0x01000000
	// KernelPmapSize is the length of the kernel physical-map region.
	KernelPmapSize = 0x00FF0000

	// KernelKmemBase is the base of the kernel heap region.
	KernelKmemBase = 0xE0000000
	// KernelKmemSize is the length of the kernel heap region.
	KernelKmemSize = 0x00400000

	// KernelVirtBase is the base of the kernel virtual/module region,
	// immediately above the kernel heap.
	KernelVirtBase = 0xE0400000
	// KernelModuleBase is the base of the module-loading region.
	KernelModuleBase = 0xE0400000
	// KernelModuleSize is the length of the module-loading region.
	KernelModuleSize = 0x1FC00000

	// KStackSize is the size of a kernel thread's stack.
	KStackSize = 0x2000
	// UStackSize is the size of a user thread's stack.
	UStackSize = 0x20000
)
