// Package boot runs the kernel's bring-up sequence: hand the firmware
// memory map to the two-phase frame allocator, stand up the direct map
// and kernel page table, hot-swap to the bitmap allocator, then start
// every core's runner and vector table. Boot order lives in its own
// package so it is one callable sequence instead of scattered top-level
// state.
package boot

import "fmt"

import "blockdev"
import "fat16"
import "mem"
import "smp"
import "syscalls"

/// Config describes one boot's inputs: the firmware-reported memory map,
/// how large the hosted simulation's flat RAM array should be, how many
/// logical cores to bring up, and an optional root filesystem device.
/// RootDisk is formatted fresh on every boot (this tree has no
/// persistent storage backing it across runs); leave it nil to boot
/// without a filesystem at all.
type Config struct {
	MemMap   mem.MemMap
	RAMSize  int
	NCores   int
	RootDisk blockdev.BlockDevice
}

var started bool
var rootFS *fat16.FS

/// Run executes the bring-up sequence described in package boot's
/// comment and returns once every core has joined. Only the first call
/// per process does anything; a kernel only boots once.
func Run(cfg Config) error {
	if started {
		return fmt.Errorf("boot: already started")
	}
	if cfg.NCores < 1 {
		return fmt.Errorf("boot: ncores must be >= 1, got %d", cfg.NCores)
	}
	if len(cfg.MemMap.Usable()) == 0 {
		return fmt.Errorf("boot: memory map has no usable regions")
	}

	mem.Phys_boot_init(cfg.MemMap, cfg.RAMSize)
	mem.Dmap_init()
	mem.Phys_bitmap_init()

	if err := smp.Start(cfg.NCores); err != nil {
		return fmt.Errorf("boot: bringing up cores: %w", err)
	}

	if cfg.RootDisk != nil {
		fs, err := fat16.Format(cfg.RootDisk)
		if err != nil {
			return fmt.Errorf("boot: formatting root filesystem: %w", err)
		}
		rootFS = fs
	}

	started = true
	return nil
}

/// Started reports whether Run has completed successfully.
func Started() bool {
	return started
}

/// RootFS returns the filesystem Run formatted from cfg.RootDisk, or nil
/// if boot ran without one.
func RootFS() *fat16.FS {
	return rootFS
}

/// MountMmapFile makes a root-filesystem file available to sys_mmap
/// under fd, creating it with contents if it doesn't already exist in
/// the root directory. Ties fat16's file storage to syscalls'
/// file-backed mmap path (sys_mmap's fd argument), the supplement this
/// tree adds beyond the bare anonymous-mapping syscall surface.
func MountMmapFile(fd int32, name string, contents []byte) error {
	if rootFS == nil {
		return fmt.Errorf("boot: no root filesystem mounted")
	}
	entries, err := rootFS.ReadRootDir()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name8_3() == name {
			syscalls.RegisterMmapFile(fd, fat16.NewFileDevice(rootFS, e))
			return nil
		}
	}
	entry, serr := rootFS.CreateFile(name, contents)
	if serr != 0 {
		return fmt.Errorf("boot: creating %s: %v", name, serr)
	}
	syscalls.RegisterMmapFile(fd, fat16.NewFileDevice(rootFS, entry))
	return nil
}
