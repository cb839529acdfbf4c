// Package proc owns the process table and the preemptive scheduler
// that layers on top of the cooperative event engine: each process is
// represented as a future that, once polled, performs the ring-3
// transition and only yields back when the process re-enters the
// kernel via syscall or the local timer's preemption path. There is no
// vendored runtime here to cut to ring 3 with, so the register
// save/restore stays a plain struct snapshot rather than a
// naked-function asm trampoline.
package proc

import "sync"
import "sync/atomic"

import "accnt"
import "defs"
import "hashtable"
import "limits"
import "res"
import "vm"

/// State_t is a process's scheduling state.
type State_t int

const (
	New State_t = iota
	Ready
	Running
	Blocked
	Terminated
)

func (s State_t) String() string {
	switch s {
	case New:
		return "new"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

/// Regs_t is the saved general-purpose register file plus the
/// processor state needed to resume a ring-3 thread.
type Regs_t struct {
	Rax, Rbx, Rcx, Rdx uint64
	Rsi, Rdi           uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
	Rbp                uint64
	Rsp                uint64
	Rip                uint64
	Rflags             uint64
}

/// Proc_t is a process control block: identity, scheduling state, the
/// saved register file, the kernel stack pointer/instruction pointer
/// captured at the last ring-3 entry, and the process's address space.
type Proc_t struct {
	Pid defs.Pid_t
	Ppid defs.Pid_t

	mu    sync.Mutex
	state State_t
	regs  Regs_t

	KernelRsp uint64
	KernelRip uint64

	Vm *vm.Vm_t

	Nthread int32 // atomic

	/// mappedOnce records whether this process has installed its
	/// first mmap region; limits.Syslimit.Mfspgs only charges for
	/// growth beyond that first mapping (see limits.Syslimit_t).
	mappedOnce bool
	mmapRes    *res.PageReservation

	/// Accnt tracks this process's accumulated time: setState charges
	/// the ticks spent Running as user time whenever the process leaves
	/// Running. Nothing in this package charges system time.
	Accnt accnt.Accnt_t

	runSince int // nanoseconds, valid only while state == Running
}

/// State returns the process's current scheduling state.
func (p *Proc_t) State() State_t {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Proc_t) setState(s State_t) {
	p.mu.Lock()
	if p.state == Running && s != Running {
		p.Accnt.AddUserTicks(p.Accnt.Tick() - p.runSince)
	}
	if s == Running {
		p.runSince = p.Accnt.Tick()
	}
	p.state = s
	p.mu.Unlock()
}

/// Regs returns a copy of the saved register file.
func (p *Proc_t) Regs() Regs_t {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regs
}

/// SetRegs overwrites the saved register file, as the preemption path
/// does when it snapshots a running thread.
func (p *Proc_t) SetRegs(r Regs_t) {
	p.mu.Lock()
	p.regs = r
	p.mu.Unlock()
}

var (
	nextPid int32 = 1 // pid 0 means "kernel/none"

	tableLock sync.RWMutex
	table     = hashtable.MkHash[hashtable.IntKey, *Proc_t](64)
)

/// Spawn allocates a pid and installs a new process in the table with
/// the given address space and initial entry point/stack: build the
/// address space first, then the PCB, then publish it. Fails with
/// -defs.ENOMEM if the system-wide process limit
/// (limits.Syslimit.Sysprocs) is already exhausted.
func Spawn(as *vm.Vm_t, entry, stackTop uint64, ppid defs.Pid_t) (*Proc_t, defs.Err_t) {
	tableLock.Lock()
	if table.Size() >= limits.Syslimit.Sysprocs {
		tableLock.Unlock()
		return nil, -defs.ENOMEM
	}
	pid := defs.Pid_t(atomic.AddInt32(&nextPid, 1) - 1)
	p := &Proc_t{
		Pid:  pid,
		Ppid: ppid,
		state: New,
		regs: Regs_t{
			Rsp:    stackTop,
			Rip:    entry,
			Rflags: 0x202,
		},
		Vm:      as,
		Nthread: 1,
	}
	table.Set(hashtable.IntKey(pid), p)
	tableLock.Unlock()
	return p, 0
}

/// Lookup finds a process by pid, returning (nil, false) if it is
/// absent or has already exited.
func Lookup(pid defs.Pid_t) (*Proc_t, bool) {
	tableLock.RLock()
	defer tableLock.RUnlock()
	p, ok := table.Get(hashtable.IntKey(pid))
	if !ok || p.State() == Terminated {
		return nil, false
	}
	return p, true
}

/// Reap removes a terminated process from the table and frees its
/// address space. The caller must have already observed Terminated.
func Reap(pid defs.Pid_t) {
	tableLock.Lock()
	p, ok := table.Get(hashtable.IntKey(pid))
	if ok {
		table.Del(hashtable.IntKey(pid))
	}
	tableLock.Unlock()
	if ok && p.Vm != nil {
		p.Vm.Uvmfree()
	}
	if ok {
		p.mu.Lock()
		mmapRes := p.mmapRes
		p.mmapRes = nil
		p.mu.Unlock()
		mmapRes.Release()
	}
}

/// ReserveMmapPages charges pages against the system-wide mmap page
/// budget (limits.Syslimit.Mfspgs), except for a process's very first
/// mapping, which is granted for free as part of process creation
/// (limits.Syslimit_t's documented exemption). Returns false if the
/// budget is exhausted, in which case the caller must not install the
/// mapping.
func (p *Proc_t) ReserveMmapPages(pages int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mappedOnce {
		p.mappedOnce = true
		return true
	}
	r, ok := res.ReservePages(pages)
	if !ok {
		return false
	}
	if p.mmapRes == nil {
		p.mmapRes = r
	} else {
		p.mmapRes.Merge(r)
	}
	return true
}

/// Exit marks p Terminated; the event engine drops its ring-3 future
/// on the next poll and the caller (a syscall handler) is responsible
/// for eventually calling Reap.
func (p *Proc_t) Exit() {
	p.setState(Terminated)
}

/// Count returns the number of live (non-reaped) processes, mostly for
/// tests and the D_STAT device.
func Count() int {
	tableLock.RLock()
	defer tableLock.RUnlock()
	return table.Size()
}
