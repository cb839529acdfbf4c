package vm

import "sort"

/// Vmregion_t tracks the set of mapped regions in one address space,
/// kept sorted by starting page number so Lookup can binary search
/// instead of scanning; empty walks the list in order.
type Vmregion_t struct {
	regions []*Vminfo_t
}

func (vr *Vmregion_t) search(pgn uintptr) int {
	return sort.Search(len(vr.regions), func(i int) bool {
		return vr.regions[i].Pgn+uintptr(vr.regions[i].Pglen) > pgn
	})
}

func (vr *Vmregion_t) insert(vmi *Vminfo_t) {
	i := vr.search(vmi.Pgn)
	vr.regions = append(vr.regions, nil)
	copy(vr.regions[i+1:], vr.regions[i:])
	vr.regions[i] = vmi
}

/// Lookup returns the region covering virtual address va, if any.
func (vr *Vmregion_t) Lookup(va uintptr) (*Vminfo_t, bool) {
	pgn := va >> PGSHIFT
	i := vr.search(pgn)
	if i >= len(vr.regions) {
		return nil, false
	}
	r := vr.regions[i]
	if pgn < r.Pgn || pgn >= r.Pgn+uintptr(r.Pglen) {
		return nil, false
	}
	return r, true
}

/// empty finds a gap of at least len bytes at or after startva, skipping
/// over any existing region in the way.
func (vr *Vmregion_t) empty(startva uintptr, length uintptr) (uintptr, uintptr) {
	pglen := (length + uintptr(PGSIZE) - 1) >> PGSHIFT
	cur := startva >> PGSHIFT
	for _, r := range vr.regions {
		if r.Pgn+uintptr(r.Pglen) <= cur {
			continue
		}
		if r.Pgn >= cur+pglen {
			break
		}
		cur = r.Pgn + uintptr(r.Pglen)
	}
	return cur << PGSHIFT, length
}

/// Clear drops every tracked region, used when an address space is torn
/// down.
func (vr *Vmregion_t) Clear() {
	vr.regions = nil
}
