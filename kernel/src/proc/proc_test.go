package proc

import "sync"
import "testing"

import "events"
import "mem"
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

func TestSpawnAssignsNonzeroPid(t *testing.T) {
	p, err := Spawn(mkAs(t), 0x400000, 0x7fffe000, 0)
	if err != 0 {
		t.Fatal(err)
	}
	if p.Pid == 0 {
		t.Fatal("pid 0 is reserved for kernel/none")
	}
	if p.State() != New {
		t.Fatalf("expected New state, got %v", p.State())
	}
	Reap(p.Pid)
}

func TestLookupFindsSpawnedProcess(t *testing.T) {
	p, err := Spawn(mkAs(t), 0x400000, 0x7fffe000, 0)
	if err != 0 {
		t.Fatal(err)
	}
	defer Reap(p.Pid)

	got, ok := Lookup(p.Pid)
	if !ok || got.Pid != p.Pid {
		t.Fatalf("lookup failed for freshly spawned pid %d", p.Pid)
	}
}

func TestRing3FutureRunsThenSuspends(t *testing.T) {
	r := events.NewRunner()
	p, err := Spawn(mkAs(t), 0x400000, 0x7fffe000, 0)
	if err != 0 {
		t.Fatal(err)
	}
	defer Reap(p.Pid)

	r.ScheduleProcess(&ring3Future{p: p}, uint32(p.Pid))
	r.Step()

	if p.State() != Running {
		t.Fatalf("expected Running after first poll, got %v", p.State())
	}

	// A ring-3 future never resolves on its own; it only becomes Ready
	// once the process has exited.
	ran := r.Step()
	if !ran {
		t.Fatal("expected the suspended future to still be scheduled")
	}
}

func TestExitCompletesRing3Future(t *testing.T) {
	r := events.NewRunner()
	p, err := Spawn(mkAs(t), 0x400000, 0x7fffe000, 0)
	if err != 0 {
		t.Fatal(err)
	}
	defer Reap(p.Pid)

	r.ScheduleProcess(&ring3Future{p: p}, uint32(p.Pid))
	r.Step()
	p.Exit()

	for i := 0; i < 5; i++ {
		r.Step()
	}

	if p.State() != Terminated {
		t.Fatalf("expected Terminated, got %v", p.State())
	}
	if r.Step() {
		t.Fatal("expected the exited process's ring-3 future to have left the run queue")
	}
}

func TestPreemptIgnoresKernelEvent(t *testing.T) {
	events.Register(99)
	r := events.RunnerFor(99)
	r.ScheduleKernel(events.FutureFunc(func(w events.Waker) events.Poll {
		return events.Pending
	}), 0)
	r.Step()

	if Preempt(99, Regs_t{}, 0, 0) {
		t.Fatal("expected Preempt to ignore pid-0 kernel work")
	}
}

func TestPreemptReschedulesSamePid(t *testing.T) {
	events.Register(100)
	p, err := Spawn(mkAs(t), 0x400000, 0x7fffe000, 0)
	if err != 0 {
		t.Fatal(err)
	}
	defer Reap(p.Pid)

	ScheduleRing3(100, p)
	events.RunnerFor(100).Step()

	snap := Regs_t{Rip: 0x401000, Rsp: 0x7fffd000}
	if !Preempt(100, snap, 0x1000, 0x2000) {
		t.Fatal("expected Preempt to act on the running process")
	}

	if p.Regs() != snap {
		t.Fatalf("expected saved registers %+v, got %+v", snap, p.Regs())
	}
	if p.KernelRsp != 0x1000 || p.KernelRip != 0x2000 {
		t.Fatalf("expected kernel stack state recorded, got rsp=%#x rip=%#x", p.KernelRsp, p.KernelRip)
	}

	ran := events.RunnerFor(100).Step()
	if !ran {
		t.Fatal("expected resumed ring-3 future to be runnable")
	}
	if p.State() != Running {
		t.Fatalf("expected resumed process to be Running again, got %v", p.State())
	}
}
