package vmm

import "github.com/kitan0516/matrix/kernel/mm"

// PageTable is exactly 1024 PTEs, 4 KiB in size. Instances are always
// allocated frame-aligned in physical memory, a CPU requirement.
type PageTable struct {
	pte [mm.EntriesPerTable]PTE
}

// PageDirectory is the CPU-facing page directory and its kernel-private
// table handles, laid out as a pair of parallel arrays. pde is the first
// member so that the address of a PageDirectory value is also the address
// of pde[0] - this is what lets a PageDirectory's own address double as
// its PDBR.
//
// Invariant: pde[i] != 0 iff ptbl[i] != nil, and pde[i]'s address bits
// equal the physical address of ptbl[i].
type PageDirectory struct {
	pde  [mm.EntriesPerTable]uint32
	ptbl [mm.EntriesPerTable]*PageTable
}

// invariantHolds reports whether the pde/ptbl parallel-array invariant
// holds across every slot. It exists for tests; production code maintains
// the invariant by construction in GetPage, CloneCtx and DestroyCtx.
func (pd *PageDirectory) invariantHolds() bool {
	for i := 0; i < mm.EntriesPerTable; i++ {
		if (pd.pde[i] != 0) != (pd.ptbl[i] != nil) {
			return false
		}
	}
	return true
}
