package mem

import "klog"

// On real hardware the direct map is installed by recursively mapping
// physical memory through a dedicated PML4 slot, using 1GB/2MB pages
// where the CPU supports them. Hosted, the direct map is just the flat
// array in ram.go — Dmap_init only has to seed the zero page and the
// kernel's top-level page table, the two things every other package in
// this tree assumes already exist once boot has finished.

/// Kent_t records a kernel PML4 entry carried into every process's
/// address space, so every process shares one view of kernel code/data.
type Kent_t struct {
	Pml4slot int
	Entry    Pa_t
}

/// Zeropg is the kernel's single shared zero-fill page, referenced by
/// every COW anonymous mapping until it's first written.
var Zeropg *Pg_t

/// Zerobpg is a byte representation of the zero page.
var Zerobpg *Bytepg_t

/// P_zeropg is the physical address of Zerobpg.
var P_zeropg Pa_t

/// Kents holds the kernel's PML4 entries, copied into every address
/// space vm.New_pmap creates. Nothing in this hosted tree adds an entry,
/// so it stays empty.
var Kents = make([]Kent_t, 0, 5)

/// Kpmapp is the kernel's own top-level page map.
var Kpmapp *Pmap_t

/// P_kpmap is the physical address of Kpmapp.
var P_kpmap Pa_t

/// Dmap_init brings up the zero page and the kernel's page table root.
/// Must run after Phys_boot_init and before any address space is created.
func Dmap_init() {
	if !Physmem.Dmapinit {
		panic("dmap_init before phys_boot_init")
	}

	var ok bool
	Zeropg, P_zeropg, ok = Physmem.Refpg_new_nozero()
	if !ok {
		panic("oom in dmap init")
	}
	for i := range Zeropg {
		Zeropg[i] = 0
	}
	Zerobpg = Pg2bytes(Zeropg)

	var kpg *Pg_t
	kpg, P_kpmap, ok = Physmem.Refpg_new()
	if !ok {
		panic("oom allocating kernel pmap")
	}
	Kpmapp = pg2pmap(kpg)
	klog.Printf("dmap: zero page and kernel pmap ready\n")
}

/// Kpmap returns the kernel's top-level page map.
func Kpmap() *Pmap_t {
	if Kpmapp == nil {
		panic("kpmap read before dmap_init")
	}
	return Kpmapp
}
