package mem

import "sync"
import "sync/atomic"
import "unsafe"
import "util"
import "klog"

/// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

/// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

/// PGOFFSET masks offsets within a page.
const PGOFFSET Pa_t = 0xfff

/// PGMASK masks the page number of an address.
const PGMASK Pa_t = ^(PGOFFSET)

/// PTE_P marks a page as present.
const PTE_P Pa_t = 1 << 0

/// PTE_W marks a page writable.
const PTE_W Pa_t = 1 << 1

/// PTE_U marks a page user-accessible.
const PTE_U Pa_t = 1 << 2

/// PTE_G marks a global page.
const PTE_G Pa_t = 1 << 8

/// PTE_PCD disables caching for the page.
const PTE_PCD Pa_t = 1 << 4

/// PTE_PS indicates a large page.
const PTE_PS Pa_t = 1 << 7

/// PTE_A marks a page as accessed.
const PTE_A Pa_t = 1 << 5

/// PTE_D marks a page as written (dirty).
const PTE_D Pa_t = 1 << 6

/// PTE_COW marks a page as copy-on-write. Stolen from the software bits of
/// the PTE, same as the hardware bits above it.
const PTE_COW Pa_t = 1 << 9

/// PTE_NX forbids instruction fetch from the page.
const PTE_NX Pa_t = 1 << 10

/// PTE_WASCOW marks a page that used to be copy-on-write but was claimed
/// outright by a single writer, so the fault handler can tell "never was
/// COW" apart from "was COW, now exclusively owned" when deciding whether
/// a TLB shootdown is needed.
const PTE_WASCOW Pa_t = 1 << 11

/// PTE_ADDR extracts the address bits of a PTE.
const PTE_ADDR Pa_t = PGMASK

/// A not-present PTE that describes a demand-paged region (rather than an
/// unmapped one) can stash its origin in bits 1-3 (where a present PTE
/// keeps PTE_W, PTE_U and the write-through bit), since hardware never
/// inspects them when PTE_P=0.
const PTE_NOTPRESENT_PROT_SHIFT = 1
const PTE_NOTPRESENT_PROT_MASK Pa_t = 0x7 << PTE_NOTPRESENT_PROT_SHIFT

/// Pa_t represents a physical address.
type Pa_t uintptr

/// Bytepg_t is a byte addressed page.
type Bytepg_t [PGSIZE]uint8

/// Pg_t is a generic page of ints.
type Pg_t [512]int

/// Pmap_t is a page table page.
type Pmap_t [512]Pa_t

/// Unpin_i allows unpinning of physical pages.
type Unpin_i interface {
	Unpin(Pa_t)
}

/// Mmapinfo_t describes a mapping created by the runtime.
type Mmapinfo_t struct {
	Pg   *Pg_t
	Phys Pa_t
}

/// Page_i is implemented by each phase of the frame allocator: the boot
/// linear allocator that hands out frames before the bitmap is built, and
/// the bitmap allocator that replaces it once the usable memory map is
/// known in full. Physmem_t holds exactly one phase at a time and
/// forwards to it under its own lock, so callers never see which phase
/// is active.
type Page_i interface {
	Alloc() (Pa_t, bool)
	Free(Pa_t)
}

/// Pg2bytes converts a page of ints to a page of bytes.
func Pg2bytes(pg *Pg_t) *Bytepg_t {
	return (*Bytepg_t)(unsafe.Pointer(pg))
}

/// Bytepg2pg converts a byte page back to a Pg_t.
func Bytepg2pg(pg *Bytepg_t) *Pg_t {
	return (*Pg_t)(unsafe.Pointer(pg))
}

func pg2pmap(pg *Pg_t) *Pmap_t {
	return (*Pmap_t)(unsafe.Pointer(pg))
}

func _pg2pgn(p_pg Pa_t) uint32 {
	return uint32(p_pg >> PGSHIFT)
}

/// Physmem_t manages all physical memory for the system in two phases:
/// a boot-time linear allocator, hot-swapped once for a bitmap allocator
/// covering the full memory map. Refcounts layer on top of whichever
/// phase is active, so fork's copy-on-write accounting stays independent
/// of the allocator's own free-list mechanics.
type Physmem_t struct {
	sync.Mutex
	phase    Page_i
	refcnt   []int32
	startn   uint32
	nframes  uint32
	Dmapinit bool
}

/// Refaddr returns the refcount pointer for the given page.
func (phys *Physmem_t) Refaddr(p_pg Pa_t) *int32 {
	idx := _pg2pgn(p_pg) - phys.startn
	return &phys.refcnt[idx]
}

/// Refcnt returns the current reference count of a page.
func (phys *Physmem_t) Refcnt(p_pg Pa_t) int {
	return int(atomic.LoadInt32(phys.Refaddr(p_pg)))
}

/// Refup increments the reference count of a page.
func (phys *Physmem_t) Refup(p_pg Pa_t) {
	c := atomic.AddInt32(phys.Refaddr(p_pg), 1)
	if c <= 0 {
		panic("refup of a free page")
	}
}

/// Refdown decrements the reference count of a page, returning it to the
/// active allocator phase once it reaches zero. Returns true when the
/// page was freed.
func (phys *Physmem_t) Refdown(p_pg Pa_t) bool {
	c := atomic.AddInt32(phys.Refaddr(p_pg), -1)
	if c < 0 {
		panic("refdown of a free page")
	}
	if c == 0 {
		phys.Lock()
		phys.phase.Free(p_pg)
		phys.Unlock()
		return true
	}
	return false
}

func (phys *Physmem_t) _alloc() (Pa_t, bool) {
	phys.Lock()
	p_pg, ok := phys.phase.Alloc()
	phys.Unlock()
	if !ok {
		return 0, false
	}
	atomic.StoreInt32(phys.Refaddr(p_pg), 1)
	return p_pg, true
}

/// Refpg_new allocates a zeroed page and returns its mapping and address.
/// The page's refcount starts at one, as if the caller had just called
/// Refup, so call sites never need to double it as the first reference.
func (phys *Physmem_t) Refpg_new() (*Pg_t, Pa_t, bool) {
	if !phys.Dmapinit {
		panic("refpg_new before dmap init")
	}
	p_pg, ok := phys._alloc()
	if !ok {
		return nil, 0, false
	}
	pg := phys.Dmap(p_pg)
	*pg = *Zeropg
	return pg, p_pg, true
}

/// Refpg_new_nozero allocates an uninitialised page.
func (phys *Physmem_t) Refpg_new_nozero() (*Pg_t, Pa_t, bool) {
	p_pg, ok := phys._alloc()
	if !ok {
		return nil, 0, false
	}
	return phys.Dmap(p_pg), p_pg, true
}

/// Pmap_new allocates a new page map for the kernel.
func (phys *Physmem_t) Pmap_new() (*Pmap_t, Pa_t, bool) {
	pg, p_pg, ok := phys.Refpg_new()
	return pg2pmap(pg), p_pg, ok
}

/// Dec_pmap decreases the reference count of a pmap, freeing it once no
/// core has it loaded into cr3.
func (phys *Physmem_t) Dec_pmap(p_pmap Pa_t) {
	phys.Refdown(p_pmap)
}

/// Dmap converts a physical address into a direct-mapped virtual address.
/// In the hosted simulation the "direct map" is an index into the
/// simulated RAM backing array rather than a real recursive page-table
/// mapping, since there is no MMU underneath this process.
func (phys *Physmem_t) Dmap(p Pa_t) *Pg_t {
	off := util.Rounddown(int(p), PGSIZE)
	return (*Pg_t)(ramPageAt(off))
}

/// Dmap_v2p converts a direct-mapped pointer back to a physical address.
func (phys *Physmem_t) Dmap_v2p(v *Pg_t) Pa_t {
	return Pa_t(ramOffsetOf(unsafe.Pointer(v)))
}

/// Dmap8 returns a byte slice mapped to the given physical address.
func (phys *Physmem_t) Dmap8(p Pa_t) []uint8 {
	return ramBacking[int(p):]
}

/// Pgcount reports the number of frames the active phase still has free,
/// or -1 while the boot phase (which does not track a free count) is
/// still active.
func (phys *Physmem_t) Pgcount() int {
	phys.Lock()
	defer phys.Unlock()
	if b, ok := phys.phase.(*BitmapAllocator); ok {
		return b.FreeCount()
	}
	return -1
}

/// Physmem is the global physical memory allocator instance.
var Physmem = &Physmem_t{}

/// Phys_boot_init brings up the boot-phase linear allocator over the
/// firmware-reported memory map. It must run before any other
/// allocation in the kernel, before the bitmap has been sized.
func Phys_boot_init(mm MemMap, ramsize int) *Physmem_t {
	ramInit(ramsize)
	phys := Physmem
	phys.phase = NewBootAllocator(mm)
	phys.startn = uint32(mm.LowestUsableFrame())
	phys.nframes = uint32(mm.TotalFrames())
	phys.refcnt = make([]int32, phys.nframes)
	phys.Dmapinit = true
	klog.Printf("boot allocator: %v usable frames in map\n", phys.nframes)
	return phys
}

/// Phys_bitmap_init hot-swaps the boot allocator for the bitmap
/// allocator: every frame the boot allocator already handed out is
/// marked used in the bitmap before the swap is published, so in-use
/// frames are never double-issued across the transition.
func Phys_bitmap_init() {
	phys := Physmem
	boot, ok := phys.phase.(*BootAllocator)
	if !ok {
		panic("bitmap_init: boot phase already retired")
	}
	bm := NewBitmapAllocator(phys.startn, phys.nframes)
	for _, p := range boot.Issued() {
		bm.markUsed(p)
	}
	phys.Lock()
	phys.phase = bm
	phys.Unlock()
}
