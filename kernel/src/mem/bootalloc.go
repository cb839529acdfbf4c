package mem

// BootAllocator is a linear bump allocator over the firmware-reported
// usable regions, used before the heap exists to build paging and size
// the bitmap allocator that replaces it. It never frees: nothing it
// hands out is live long enough to need reclaiming before the handoff.
type BootAllocator struct {
	regions []MemRegion
	ri      int
	cursor  Pa_t
	issued  []Pa_t
}

/// NewBootAllocator builds a boot allocator over a memory map's usable
/// regions.
func NewBootAllocator(mm MemMap) *BootAllocator {
	b := &BootAllocator{regions: mm.Usable()}
	if len(b.regions) > 0 {
		b.cursor = b.regions[0].Base
	}
	return b
}

/// Alloc hands out the next frame in the current region, advancing to
/// the next usable region once the current one is exhausted.
func (b *BootAllocator) Alloc() (Pa_t, bool) {
	for b.ri < len(b.regions) {
		r := b.regions[b.ri]
		end := r.Base + Pa_t(r.Length)
		if b.cursor+Pa_t(PGSIZE) > end {
			b.ri++
			if b.ri < len(b.regions) {
				b.cursor = b.regions[b.ri].Base
			}
			continue
		}
		p := b.cursor
		b.cursor += Pa_t(PGSIZE)
		b.issued = append(b.issued, p)
		return p, true
	}
	return 0, false
}

/// Free is a no-op: the boot allocator never reclaims a frame. Anything
/// it hands out lives until Phys_bitmap_init folds it into the bitmap.
func (b *BootAllocator) Free(Pa_t) {}

/// Issued returns every frame handed out so far, so the bitmap phase can
/// mark them used before taking over.
func (b *BootAllocator) Issued() []Pa_t {
	return b.issued
}
