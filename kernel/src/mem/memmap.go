package mem

// MemMap models the firmware-reported memory map a Limine-style loader
// hands the kernel at boot, grounded on the Usable/Reserved region split
// the original boot frame allocator reads (boot_frame_allocator.rs).

/// RegionType classifies a span of physical memory reported by firmware.
type RegionType int

const (
	RegionUsable RegionType = iota
	RegionReserved
)

/// MemRegion is one entry of the firmware memory map.
type MemRegion struct {
	Base   Pa_t
	Length uintptr
	Type   RegionType
}

/// MemMap is the full firmware-reported memory map, in ascending base
/// order.
type MemMap []MemRegion

/// Usable returns only the regions available for general allocation.
func (m MemMap) Usable() []MemRegion {
	var out []MemRegion
	for _, r := range m {
		if r.Type == RegionUsable {
			out = append(out, r)
		}
	}
	return out
}

/// LowestUsableFrame returns the frame number of the first usable byte in
/// the map. Frame accounting (Physmem_t.startn) is relative to this.
func (m MemMap) LowestUsableFrame() uint32 {
	lowest := ^Pa_t(0)
	for _, r := range m.Usable() {
		if r.Base < lowest {
			lowest = r.Base
		}
	}
	return uint32(lowest >> PGSHIFT)
}

/// TotalFrames returns the number of page frames spanned by the usable
/// regions, from the lowest usable frame through the highest.
func (m MemMap) TotalFrames() uint32 {
	lowest := ^Pa_t(0)
	var highest Pa_t
	for _, r := range m.Usable() {
		if r.Base < lowest {
			lowest = r.Base
		}
		end := r.Base + Pa_t(r.Length)
		if end > highest {
			highest = end
		}
	}
	if highest <= lowest {
		return 0
	}
	return uint32((highest - lowest + Pa_t(PGSIZE) - 1) >> PGSHIFT)
}
