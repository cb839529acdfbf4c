package interrupts

import "sync"
import "testing"
import "time"

import "apic"
import "events"
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

func TestInitAdvancesSystemClockOnTimer(t *testing.T) {
	const cpu = 20
	if _, err := Init(cpu, 1); err != nil {
		t.Fatal(err)
	}

	r := events.RunnerFor(cpu)
	armed := false
	r.ScheduleKernel(events.FutureFunc(func(w events.Waker) events.Poll {
		if !armed {
			armed = true
			return r.NanosleepCurrent(1).Poll(w)
		}
		return events.Ready
	}), 0)
	if !r.Step() {
		t.Fatal("expected the sleep-arming future to run")
	}

	// Only the timer advances the system clock, so the sleeper wakes
	// only if the timer has fired since the sleep was armed.
	time.Sleep(3 * apic.TickInterval)
	if !r.Step() {
		t.Fatal("expected the timer to advance the system clock and wake the sleeper")
	}
}

func TestTimerHandlerPreemptsRunningProcess(t *testing.T) {
	const cpu = 21
	events.Register(cpu)
	p, perr := proc.Spawn(mkAs(t), 0x400000, 0x7fffe000, 0)
	if perr != 0 {
		t.Fatal(perr)
	}
	defer proc.Reap(p.Pid)

	proc.ScheduleRing3(cpu, p)
	events.RunnerFor(cpu).Step()
	if p.State() != proc.Running {
		t.Fatalf("expected Running before preemption, got %v", p.State())
	}

	timerHandler(cpu)

	if p.State() != proc.Ready {
		t.Fatalf("expected Ready after preemption, got %v", p.State())
	}
}

func TestSyscallWithNoHandlerReturnsError(t *testing.T) {
	prev := SyscallHandler
	SyscallHandler = nil
	defer func() { SyscallHandler = prev }()

	if got := Syscall(0, 1, 0, 0, 0, 0, 0, 0, 0); got != -1 {
		t.Fatalf("expected -1 with no handler installed, got %d", got)
	}
}

func TestSyscallDispatchesToInstalledHandler(t *testing.T) {
	prev := SyscallHandler
	defer func() { SyscallHandler = prev }()

	SyscallHandler = func(cpu int, pid uint32, nr int, a1, a2, a3, a4, a5, a6 uint64) int64 {
		return int64(cpu) + int64(pid) + int64(nr)
	}
	if got := Syscall(3, 4, 0, 0, 0, 0, 0, 0, 0); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}
