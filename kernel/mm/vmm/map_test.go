package vmm

import (
	"testing"
	"unsafe"

	"github.com/kitan0516/matrix/kernel"
	"github.com/kitan0516/matrix/kernel/mm"
)

func withMapSeams(t *testing.T, tableBacking *PageTable) {
	origAlloc, origTLB := kheapAllocAlignedFn, invalidateTLBFn
	t.Cleanup(func() {
		kheapAllocAlignedFn = origAlloc
		invalidateTLBFn = origTLB
		mm.SetFrameAllocator(nil, nil)
	})

	kheapAllocAlignedFn = func(uintptr) (uintptr, uintptr, *kernel.Error) {
		addr := uintptr(unsafe.Pointer(tableBacking))
		return addr, addr, nil
	}
	invalidateTLBFn = func(uint32) {}
}

func withFrameAllocator(t *testing.T) *uint32 {
	next := new(uint32)
	mm.SetFrameAllocator(func() (mm.Frame, *kernel.Error) {
		*next++
		return mm.Frame(*next), nil
	}, func(mm.Frame) {})
	t.Cleanup(func() { mm.SetFrameAllocator(nil, nil) })
	return next
}

func TestGetPageCreatesTableOnDemand(t *testing.T) {
	var table PageTable
	withMapSeams(t, &table)

	var dir PageDirectory
	ctx := &Ctx{dir: &dir}

	pte, err := GetPage(ctx, 0x00401000, true, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pte == nil {
		t.Fatal("expected a non-nil PTE")
	}
	if dir.ptbl[1] == nil {
		t.Fatal("expected GetPage to install a page table at the computed directory index")
	}
	if !dir.invariantHolds() {
		t.Fatal("expected the pde/ptbl invariant to hold after GetPage")
	}
}

func TestGetPageWithoutMakeTableReturnsNil(t *testing.T) {
	var dir PageDirectory
	ctx := &Ctx{dir: &dir}

	pte, err := GetPage(ctx, 0x00401000, false, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pte != nil {
		t.Fatal("expected a nil PTE when no table exists and makeTable is false")
	}
}

func TestGetPageRejectsOutOfRangeDirectoryIndex(t *testing.T) {
	var dir PageDirectory
	ctx := &Ctx{dir: &dir}

	_, err := GetPage(ctx, uintptr(mm.EntriesPerTable)*mm.EntriesPerTable*mm.PageSize, true, 0)
	if err != ErrInval {
		t.Fatalf("expected ErrInval; got %v", err)
	}
}

func TestMapValidatesArguments(t *testing.T) {
	ctx := &Ctx{dir: &PageDirectory{}}

	cases := []struct {
		name  string
		start uintptr
		size  uintptr
		flags Flags
		want  *kernel.Error
	}{
		{"zero size", 0x1000, 0, FlagRead | FlagFixed, ErrInval},
		{"unaligned size", 0x1000, 10, FlagRead | FlagFixed, ErrInval},
		{"no access flag", 0x1000, mm.PageSize, FlagFixed, ErrInval},
		{"not fixed", 0x1000, mm.PageSize, FlagRead, ErrUnsupported},
		{"unaligned start", 0x1001, mm.PageSize, FlagRead | FlagFixed, ErrInval},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Map(ctx, tc.start, tc.size, tc.flags); err != tc.want {
				t.Fatalf("expected %v; got %v", tc.want, err)
			}
		})
	}
}

func TestMapReadOnlyByDefault(t *testing.T) {
	var table PageTable
	withMapSeams(t, &table)
	withFrameAllocator(t)

	ctx := &Ctx{dir: &PageDirectory{}}

	if err := Map(ctx, 0x00400000, mm.PageSize, FlagRead|FlagExec|FlagFixed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pte, err := GetPage(ctx, 0x00400000, false, 0)
	if err != nil || pte == nil {
		t.Fatalf("expected an installed PTE; err=%v pte=%v", err, pte)
	}
	if !pte.HasFlags(FlagPresent) {
		t.Fatal("expected FlagPresent to be set")
	}
	if pte.HasFlags(FlagRW) {
		t.Fatal("expected read+exec mapping to stay read-only (no WRITE bit)")
	}
}

func TestMapWritableAndUserFlags(t *testing.T) {
	var table PageTable
	withMapSeams(t, &table)
	withFrameAllocator(t)

	ctx := &Ctx{dir: &PageDirectory{}}

	if err := Map(ctx, 0x00400000, mm.PageSize, FlagRead|FlagWrite|FlagFixed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pte, _ := GetPage(ctx, 0x00400000, false, 0)
	if !pte.HasFlags(FlagRW) {
		t.Fatal("expected FlagRW to be set for a writable mapping")
	}
	if !pte.HasFlags(FlagUser) {
		t.Fatal("expected non-kernel contexts to get FlagUser")
	}
}

func TestMapKernelCtxDoesNotSetUserFlag(t *testing.T) {
	var table PageTable
	withMapSeams(t, &table)
	withFrameAllocator(t)

	origDir := kernelCtx.dir
	kernelCtx.dir = &PageDirectory{}
	t.Cleanup(func() { kernelCtx.dir = origDir })

	if err := Map(&kernelCtx, 0x00400000, mm.PageSize, FlagRead|FlagWrite|FlagFixed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pte, _ := GetPage(&kernelCtx, 0x00400000, false, 0)
	if pte.HasFlags(FlagUser) {
		t.Fatal("did not expect FlagUser on a kernel context mapping")
	}
}

func TestUnmapFreesFrameAndInvalidatesTLB(t *testing.T) {
	var table PageTable
	withMapSeams(t, &table)
	withFrameAllocator(t)

	ctx := &Ctx{dir: &PageDirectory{}}
	if err := Map(ctx, 0x00400000, mm.PageSize, FlagRead|FlagFixed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var freed mm.Frame
	mm.SetFrameAllocator(func() (mm.Frame, *kernel.Error) { return 0, nil }, func(f mm.Frame) { freed = f })

	invalidated := false
	invalidateTLBFn = func(v uint32) {
		if v != 0x00400000 {
			t.Fatalf("expected TLB invalidation for 0x00400000; got %x", v)
		}
		invalidated = true
	}

	if err := Unmap(ctx, 0x00400000, mm.PageSize); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if freed == 0 {
		t.Fatal("expected Unmap to free the backing frame")
	}
	if !invalidated {
		t.Fatal("expected Unmap to invalidate the TLB entry")
	}

	pte, _ := GetPage(ctx, 0x00400000, false, 0)
	if pte.HasFlags(FlagPresent) {
		t.Fatal("expected the PTE to be cleared after Unmap")
	}
}

func TestUnmapRejectsUnmappedPage(t *testing.T) {
	ctx := &Ctx{dir: &PageDirectory{}}

	if err := Unmap(ctx, 0x00400000, mm.PageSize); err != ErrInval {
		t.Fatalf("expected ErrInval for an unmapped page; got %v", err)
	}
}
