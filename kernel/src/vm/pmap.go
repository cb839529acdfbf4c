package vm

import "unsafe"

import "mem"
import "defs"

// PTE bit names re-exported from mem without the mem. prefix, since this
// package uses them constantly and qualifying every use would be noise.
const (
	PGSHIFT   = mem.PGSHIFT
	PGSIZE    = mem.PGSIZE
	PGOFFSET  = mem.PGOFFSET
	PTE_P     = mem.PTE_P
	PTE_W     = mem.PTE_W
	PTE_U     = mem.PTE_U
	PTE_G     = mem.PTE_G
	PTE_PCD   = mem.PTE_PCD
	PTE_PS    = mem.PTE_PS
	PTE_A     = mem.PTE_A
	PTE_D     = mem.PTE_D
	PTE_COW   = mem.PTE_COW
	PTE_NX    = mem.PTE_NX
	PTE_WASCOW = mem.PTE_WASCOW
	PTE_ADDR  = mem.PTE_ADDR
)

// CurCore and NumCores let this package issue TLB shootdowns without
// importing the smp package (which would create an import cycle once smp
// needs vm to build process address spaces). smp.Start installs the real
// NumCores; CurCore keeps its default of 0. The defaults make every
// operation safe to call from a single-core test.
var CurCore = func() int { return 0 }
var NumCores = func() int { return 1 }

func pgbits(va int) (int, int, int, int) {
	v := uint(va)
	idx := func(shift uint) int { return int((v >> shift) & 0x1ff) }
	return idx(39), idx(30), idx(21), idx(12)
}

// pmap_walk walks the four page-table levels rooted at pml4 for va,
// allocating any missing intermediate table with perms, and returns the
// leaf PTE slot.
func pmap_walk(pml4 *mem.Pmap_t, va int, perms mem.Pa_t) (*mem.Pa_t, defs.Err_t) {
	l4i, l3i, l2i, l1i := pgbits(va)
	cur := pml4
	for _, idx := range []int{l4i, l3i, l2i} {
		ent := &cur[idx]
		if *ent&PTE_P == 0 {
			next, p_next, ok := mem.Physmem.Pmap_new()
			if !ok {
				return nil, -defs.ENOMEM
			}
			*ent = p_next | perms | PTE_P
			cur = next
		} else {
			cur = (*mem.Pmap_t)(unsafe.Pointer(mem.Physmem.Dmap(*ent & PTE_ADDR)))
		}
	}
	return &cur[l1i], 0
}

// Pmap_lookup walks the page tables without allocating, returning nil if
// any intermediate level is absent.
func Pmap_lookup(pml4 *mem.Pmap_t, va int) *mem.Pa_t {
	l4i, l3i, l2i, l1i := pgbits(va)
	cur := pml4
	for _, idx := range []int{l4i, l3i, l2i} {
		ent := &cur[idx]
		if *ent&PTE_P == 0 {
			return nil
		}
		cur = (*mem.Pmap_t)(unsafe.Pointer(mem.Physmem.Dmap(*ent & PTE_ADDR)))
	}
	return &cur[l1i]
}

/// New_pmap allocates a fresh top-level page table and copies in the
/// kernel's shared upper-half entries (mem.Kents), the way every address
/// space in this kernel starts out able to see kernel code and data.
func New_pmap() (*mem.Pmap_t, mem.Pa_t, bool) {
	pg, p_pg, ok := mem.Physmem.Pmap_new()
	if !ok {
		return nil, 0, false
	}
	for _, k := range mem.Kents {
		pg[k.Pml4slot] = k.Entry
	}
	return pg, p_pg, true
}
