package vmm

import (
	"github.com/kitan0516/matrix/kernel"
	"github.com/kitan0516/matrix/kernel/mm"
)

// Flag is a single bit in a page table entry or page directory entry. The
// bit positions below are the CPU-defined layout for this architecture and
// must not be renumbered.
type Flag uint32

const (
	// FlagPresent marks the entry as valid.
	FlagPresent Flag = 1 << 0
	// FlagRW marks the entry as writable; when clear, the page is read-only.
	FlagRW Flag = 1 << 1
	// FlagUser allows user-mode access; when clear, only supervisor code
	// may access the page.
	FlagUser Flag = 1 << 2
	// FlagWriteThrough disables CPU write-back caching for the entry.
	FlagWriteThrough Flag = 1 << 3
	// FlagCacheDisabled disables CPU caching entirely for the entry.
	FlagCacheDisabled Flag = 1 << 4
	// FlagAccessed is set by the CPU the first time the entry is used in
	// a translation.
	FlagAccessed Flag = 1 << 5
	// FlagDirty is set by the CPU the first time the entry is written
	// through.
	FlagDirty Flag = 1 << 6

	// flagMask covers every flag bit this package understands; anything
	// outside this mask is ignored by SetFlags, matching the data model's
	// "flags outside the defined set are ignored" requirement.
	flagMask = FlagPresent | FlagRW | FlagUser | FlagWriteThrough | FlagCacheDisabled | FlagAccessed | FlagDirty

	// frameShift is the bit offset of the frame field within a PTE/PDE word.
	frameShift = 12
	// maxFrameNumber is the largest frame number representable in the
	// 20-bit frame field.
	maxFrameNumber = 1<<20 - 1
	// frameFieldMask covers the 20 high bits that hold the frame number.
	frameFieldMask = uint32(maxFrameNumber) << frameShift
)

// PTE is a single 32-bit page table entry. Its bit layout is CPU-defined:
// present(1), rw(1), user(1), writethrough(1), cache_disabled(1),
// accessed(1), dirty(1), reserved(5), frame(20). Callers interact with a
// PTE only through its accessor/mutator methods so the bit layout stays
// centralized here.
type PTE uint32

// HasFlags reports whether every bit in flags is set on this entry.
func (p PTE) HasFlags(flags Flag) bool {
	return uint32(p)&uint32(flags) == uint32(flags)
}

// SetFlags sets the given flags on this entry. Bits outside flagMask are
// ignored.
func (p *PTE) SetFlags(flags Flag) {
	*p = PTE(uint32(*p) | (uint32(flags) & uint32(flagMask)))
}

// ClearFlags clears the given flags on this entry.
func (p *PTE) ClearFlags(flags Flag) {
	*p = PTE(uint32(*p) &^ uint32(flags))
}

// Frame returns the physical frame number this entry points to. The value
// is meaningless when FlagPresent is clear.
func (p PTE) Frame() mm.Frame {
	return mm.Frame((uint32(p) & frameFieldMask) >> frameShift)
}

// SetFrame updates the frame number this entry points to. It fails with
// ErrInval if the frame number does not fit in the 20-bit frame field.
func (p *PTE) SetFrame(frame mm.Frame) *kernel.Error {
	if uint32(frame) > maxFrameNumber {
		return ErrInval
	}
	*p = PTE((uint32(*p) &^ frameFieldMask) | (uint32(frame) << frameShift))
	return nil
}

// NewPDE builds a page directory entry from a page-table physical address
// and a set of flags. It is the inverse of PDEAddrFlags and fails with
// ErrInval if physAddr is not 4 KiB-aligned.
func NewPDE(physAddr uint32, flags Flag) (uint32, *kernel.Error) {
	if physAddr&uint32(mm.PageOffsetMask) != 0 {
		return 0, ErrInval
	}
	return physAddr | (uint32(flags) & uint32(flagMask)), nil
}

// PDEAddrFlags decomposes a page directory entry into the physical address
// of its page table and the flags applied to it. It is the inverse of
// NewPDE.
func PDEAddrFlags(pde uint32) (physAddr uint32, flags Flag) {
	return pde &^ uint32(mm.PageOffsetMask), Flag(pde & uint32(mm.PageOffsetMask) & uint32(flagMask))
}
