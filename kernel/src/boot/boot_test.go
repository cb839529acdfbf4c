package boot

import "testing"

import "blockdev"
import "mem"

func testMemMap(npages int) mem.MemMap {
	return mem.MemMap{
		{Base: 0, Length: uintptr(npages * mem.PGSIZE), Type: mem.RegionUsable},
	}
}

func TestRunBringsUpEveryCoreAndRootFilesystem(t *testing.T) {
	if Started() {
		t.Skip("boot already ran in this process")
	}

	cfg := Config{
		MemMap:   testMemMap(256),
		RAMSize:  256 * mem.PGSIZE,
		NCores:   2,
		RootDisk: blockdev.NewRAMDisk(512),
	}
	if err := Run(cfg); err != nil {
		t.Fatal(err)
	}
	if !Started() {
		t.Fatal("expected Started to report true after a successful Run")
	}
	if RootFS() == nil {
		t.Fatal("expected a root filesystem after booting with a RootDisk")
	}

	if err := MountMmapFile(0, "INIT.BIN", []byte("hello from the root filesystem")); err != nil {
		t.Fatal(err)
	}
	// Calling it again for the same name must find the existing entry
	// rather than erroring out on a full root directory.
	if err := MountMmapFile(0, "INIT.BIN", []byte("ignored on the second call")); err != nil {
		t.Fatal(err)
	}
}

func TestRunRejectsEmptyMemoryMap(t *testing.T) {
	if Started() {
		t.Skip("boot already ran in this process; Run always fails once started")
	}
	cfg := Config{
		MemMap:  mem.MemMap{},
		RAMSize: mem.PGSIZE,
		NCores:  1,
	}
	if err := Run(cfg); err == nil {
		t.Fatal("expected an error with no usable memory regions")
	}
}
