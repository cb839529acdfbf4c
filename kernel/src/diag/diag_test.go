package diag

import "sync"
import "testing"

import "mem"
import "proc"
import "vm"

var memOnce sync.Once

func mkAs(t *testing.T) *vm.Vm_t {
	memOnce.Do(func() {
		const frames = 256
		mm := mem.MemMap{{Base: 0, Length: uintptr(frames * mem.PGSIZE), Type: mem.RegionUsable}}
		mem.Phys_boot_init(mm, frames*mem.PGSIZE)
		mem.Dmap_init()
		mem.Phys_bitmap_init()
	})
	pmap, ppmap, ok := vm.New_pmap()
	if !ok {
		t.Fatal("failed to allocate test pmap")
	}
	return &vm.Vm_t{Pmap: pmap, P_pmap: ppmap}
}

func TestDecodeAtUndecodableReturnsPlaceholder(t *testing.T) {
	if got := DecodeAt(nil, 0x1000); got != "<undecodable>" {
		t.Fatalf("expected placeholder for empty code, got %q", got)
	}
}

func TestDecodeAtDecodesNop(t *testing.T) {
	// 0x90 is NOP on amd64.
	got := DecodeAt([]byte{0x90}, 0x1000)
	if got == "<undecodable>" {
		t.Fatal("expected a decoded NOP, got placeholder")
	}
}

func TestHandlePageFaultOnUnmappedAddressTerminatesProcess(t *testing.T) {
	as := mkAs(t)
	p, err := proc.Spawn(as, 0x400000, 0x7fffe000, 0)
	if err != 0 {
		t.Fatal(err)
	}
	defer proc.Reap(p.Pid)

	gotErr := HandlePageFault(p, 0xdeadb000, 0, []byte{0x90}, 0x400000)
	if gotErr == 0 {
		t.Fatal("expected a fault on an address outside any mapping")
	}
	if p.State() != proc.Terminated {
		t.Fatalf("expected process to be terminated after unresolved fault, got %v", p.State())
	}
}

func TestHandleGPFaultTerminatesProcess(t *testing.T) {
	as := mkAs(t)
	p, err := proc.Spawn(as, 0x400000, 0x7fffe000, 0)
	if err != 0 {
		t.Fatal(err)
	}
	defer proc.Reap(p.Pid)

	HandleGPFault(p, []byte{0x90}, 0x400000)
	if p.State() != proc.Terminated {
		t.Fatalf("expected process to be terminated after #GP, got %v", p.State())
	}
}

func TestPanicRecoversIntoPanicValue(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected Panic to panic")
		}
	}()
	Panic("invariant violated: %d", 42)
}
