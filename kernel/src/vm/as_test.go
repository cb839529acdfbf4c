package vm

import "testing"

import "defs"
import "mem"

// setupTestMem brings up the two-phase frame allocator and address-space
// machinery fresh for one test: boot allocator over a small simulated RAM,
// immediately folded into the bitmap allocator the way boot.go does once
// the kernel's own heap is up.
func setupTestMem(t *testing.T, frames int) {
	t.Helper()
	mm := mem.MemMap{{Base: 0, Length: uintptr(frames * mem.PGSIZE), Type: mem.RegionUsable}}
	mem.Phys_boot_init(mm, frames*mem.PGSIZE)
	mem.Dmap_init()
	mem.Phys_bitmap_init()
}

func newTestAs(t *testing.T) *Vm_t {
	t.Helper()
	pmap, p_pmap, ok := New_pmap()
	if !ok {
		t.Fatal("New_pmap: out of frames")
	}
	return &Vm_t{Pmap: pmap, P_pmap: p_pmap}
}

// TestAnonMmapFaultIn checks that a fresh anonymous mapping faults in
// zeroed pages on demand, and that a write survives a translate round
// trip.
func TestAnonMmapFaultIn(t *testing.T) {
	setupTestMem(t, 64)
	as := newTestAs(t)

	const base = 0x2000
	const length = 0x2000 // two pages
	as.Vmadd_anon(base, length, mem.PTE_U|mem.PTE_W)

	// First page: a write fault should install it present and writable.
	err := as.Pgfault(defs.Tid_t(0), base, uintptr(mem.PTE_U|mem.PTE_W))
	if err != 0 {
		t.Fatalf("unexpected page fault error: %d", err)
	}
	pte := Pmap_lookup(as.Pmap, base)
	if pte == nil || *pte&PTE_P == 0 {
		t.Fatal("expected first page to be mapped present after fault-in")
	}

	// Touching the second page should fault it in independently.
	err = as.Pgfault(defs.Tid_t(0), uintptr(base+mem.PGSIZE), uintptr(mem.PTE_U|mem.PTE_W))
	if err != 0 {
		t.Fatalf("unexpected page fault error on second page: %d", err)
	}
	pte2 := Pmap_lookup(as.Pmap, base+mem.PGSIZE)
	if pte2 == nil || *pte2&PTE_P == 0 {
		t.Fatal("expected second page to be mapped present after fault-in")
	}

	// A write through the direct map followed by a read must round-trip.
	pg := mem.Physmem.Dmap(*pte & PTE_ADDR)
	bpg := mem.Pg2bytes(pg)
	for i, b := range bpg {
		if b != 0 {
			t.Fatalf("expected a zero-filled page, byte %d is %#x", i, b)
		}
	}
	bpg[0], bpg[1], bpg[2], bpg[3] = 0xef, 0xbe, 0xad, 0xde // 0xdeadbeef, little-endian
	got := uint32(bpg[0]) | uint32(bpg[1])<<8 | uint32(bpg[2])<<16 | uint32(bpg[3])<<24
	if got != 0xdeadbeef {
		t.Fatalf("read back %#x, want 0xdeadbeef", got)
	}
}

// TestMapUnmapTranslateRoundTrip checks: map(p, F); translate succeeds;
// unmap(p); translate is unmapped.
func TestMapUnmapTranslateRoundTrip(t *testing.T) {
	setupTestMem(t, 16)
	as := newTestAs(t)
	as.Lock_pmap()
	defer as.Unlock_pmap()

	_, p_pg, ok := mem.Physmem.Refpg_new()
	if !ok {
		t.Fatal("out of frames")
	}

	const va = 0x5000
	ninval, ok := as.Page_insert(va, p_pg, mem.PTE_U|mem.PTE_W, true, nil)
	if !ok {
		t.Fatal("Page_insert failed")
	}
	if ninval {
		t.Fatal("first insert into an empty slot should not need invalidation")
	}

	pte := Pmap_lookup(as.Pmap, va)
	if pte == nil || *pte&PTE_P == 0 {
		t.Fatal("expected va to translate after map")
	}
	if *pte&PTE_ADDR != p_pg {
		t.Fatalf("translated frame %#x, want %#x", *pte&PTE_ADDR, p_pg)
	}

	if !as.Page_remove(va) {
		t.Fatal("expected Page_remove to report an unmap")
	}
	pte = Pmap_lookup(as.Pmap, va)
	if pte == nil {
		t.Fatal("expected the PTE slot to still exist (just cleared)")
	}
	if *pte&PTE_P != 0 {
		t.Fatal("expected va to be unmapped after Page_remove")
	}
}

// TestPgfaultOutsideAnyRegionFaults checks that a fault outside any
// mapping record terminates the faulting process, surfaced here as an
// EFAULT return rather than an actual process kill (that's proc's job).
func TestPgfaultOutsideAnyRegionFaults(t *testing.T) {
	setupTestMem(t, 16)
	as := newTestAs(t)

	err := as.Pgfault(defs.Tid_t(0), 0x9999000, uintptr(mem.PTE_U))
	if err != -defs.EFAULT {
		t.Fatalf("expected EFAULT for an address outside any mapping, got %d", err)
	}
}

// TestPgfaultWriteToReadOnlyRegionFaults checks the protection-violation
// branch of Sys_pgfault.
func TestPgfaultWriteToReadOnlyRegionFaults(t *testing.T) {
	setupTestMem(t, 16)
	as := newTestAs(t)

	const base = 0x3000
	as.Vmadd_anon(base, mem.PGSIZE, mem.PTE_U)

	err := as.Pgfault(defs.Tid_t(0), base, uintptr(mem.PTE_U|mem.PTE_W))
	if err != -defs.EFAULT {
		t.Fatalf("expected EFAULT writing to a read-only mapping, got %d", err)
	}
}

func TestForkClonesRootOnly(t *testing.T) {
	setupTestMem(t, 16)
	as := newTestAs(t)
	as.Vmadd_anon(0x4000, mem.PGSIZE, mem.PTE_U|mem.PTE_W)

	child, err := as.Fork()
	if err != 0 {
		t.Fatalf("Fork failed: %d", err)
	}
	if child.P_pmap == as.P_pmap {
		t.Fatal("expected the child to get a distinct root frame")
	}
	if _, ok := child.Vmregion.Lookup(0x4000); ok {
		t.Fatal("expected a skeletal fork to carry none of the parent's mapping records")
	}
}
