// Package bounds centralizes the kernel's fixed virtual-memory layout.
// Every address here is a kernel-wide constant chosen at link time
// rather than read from a config file.
package bounds

import "mem"

/// VUserMin is the lowest virtual address a user mapping may occupy.
/// Everything below is reserved so a null-pointer-style access always faults.
const VUserMin uintptr = 0x1000

/// VKernelHalf is the first virtual address belonging to the shared kernel
/// upper half — entries [256, 512) of the root page table.
const VKernelHalf uintptr = 1 << 47

/// HeapStart is the fixed virtual base of the kernel heap.
const HeapStart uintptr = 0xffff_ff00_0000_0000

/// HeapSize is the kernel heap's reserved size: 1 MiB, backed on demand.
const HeapSize uintptr = 1 << 20

/// UserStackBase is the fixed virtual base of a fresh process's stack.
const UserStackBase uintptr = 0x7000_0000_0000

/// UserStackPages is the number of pages reserved for a fresh user stack.
const UserStackPages = 2

/// UserStackSize is UserStackPages in bytes.
const UserStackSize = UserStackPages * uintptr(mem.PGSIZE)

/// MmapBase is where the single monotonic mmap cursor starts growing up
/// from. Only one growth direction is supported in this iteration.
const MmapBase uintptr = 0x0900_0000_0000

/// Vdirect is the higher-half direct-map offset: physical address p is
/// readable at virtual Vdirect+p once the bootloader hands off the HHDM.
/// Mirrors mem.Vdirect; kept here too since vmm and mem both anchor layout
/// decisions off it.
var Vdirect = mem.Vdirect
