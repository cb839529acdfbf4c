package vm

import "blockdev"
import "defs"
import "mem"

/// mtype_t distinguishes the two kinds of mapping this kernel supports:
/// anonymous (zero-fill, copy-on-write from the shared zero page) and
/// file-backed
/// (populated a page at a time from a block device). Shared-anonymous
/// and shared-file variants are not modeled, since nothing in this tree
/// shares a mapping across address spaces outside of ordinary COW.
type mtype_t int

const (
	VANON mtype_t = iota
	VFILE
)

type filemapping_t struct {
	foff int
	dev  blockdev.BlockDevice
}

/// Vminfo_t describes one mapped region of an address space: its type,
/// its page range (Pgn/Pglen, in page numbers not bytes), and the
/// permissions a successful fault should install.
type Vminfo_t struct {
	Mtype mtype_t
	Pgn   uintptr
	Pglen int
	Perms uint
	file  filemapping_t
}

/// Ptefor returns the (possibly newly allocated) PTE slot for va within
/// this region's page table.
func (vmi *Vminfo_t) Ptefor(pmap *mem.Pmap_t, va uintptr) (*mem.Pa_t, bool) {
	pte, err := pmap_walk(pmap, int(va), PTE_U|PTE_W)
	if err != 0 {
		return nil, false
	}
	return pte, true
}

/// Filepage reads the page backing faultaddr from this region's block
/// device, a block-device-sized page at a time.
func (vmi *Vminfo_t) Filepage(faultaddr uintptr) (*mem.Pg_t, mem.Pa_t, defs.Err_t) {
	pg, p_pg, ok := mem.Physmem.Refpg_new_nozero()
	if !ok {
		return nil, 0, -defs.ENOMEM
	}
	pgoff := (int(faultaddr) - int(vmi.Pgn<<PGSHIFT))
	byteoff := vmi.file.foff + pgoff
	blockno := byteoff / blockdev.BlockSize
	bpg := mem.Pg2bytes(pg)
	blocksPerPage := PGSIZE / blockdev.BlockSize
	for i := 0; i < blocksPerPage; i++ {
		lo, hi := i*blockdev.BlockSize, (i+1)*blockdev.BlockSize
		if err := vmi.file.dev.ReadBlock(blockno+i, bpg[lo:hi]); err != 0 {
			mem.Physmem.Refdown(p_pg)
			return nil, 0, err
		}
	}
	return pg, p_pg, 0
}
