// Package interrupts wires the per-core local APIC to the event engine
// and the process scheduler: a vector table driven by apic.LocalApic
// instead of a real x2APIC, with the naked-asm register-save trampoline
// a bare-metal build would need replaced by proc.Preempt, which already
// captures "whatever the caller can observe" rather than raw stack
// contents.
package interrupts

import "apic"
import "defs"
import "diag"
import "events"
import "proc"
import "tlb"

/// Vector numbers for the IDT this kernel would install. PageFaultVector
/// and GPFaultVector match the hardware-assigned #PF/#GP vectors an x86
/// IDT installs its exception handlers under.
const (
	TimerVector         = apic.TimerVector
	PageFaultVector uint8 = 14
	GPFaultVector   uint8 = 13
	SyscallVector uint8 = 0x80
	TlbShootdownVector uint8 = 0x81
)

/// SyscallHandler is the hook Syscall forwards to; syscalls.Syscall has
/// the matching signature. Nothing in this tree assigns it, so Syscall
/// returns -1 until a caller installs one. Kept as a
/// package variable instead of a direct import to avoid a cycle
/// (syscalls needs proc and vm, not interrupts). Arguments after pid are
/// the syscall number and its six SysV argument registers (rdi, rsi,
/// rdx, r10, r8, r9).
var SyscallHandler func(cpu int, pid uint32, nr int, a1, a2, a3, a4, a5, a6 uint64) int64

var ncores int

/// Init brings up the local APIC and vector table for cpu, wiring its
/// timer to the event runner's system clock and process preemption, and
/// its TLB-shootdown vector to tlb.Drain. ncoresTotal is used to size
/// cross-core shootdowns; pass it the same value on every core.
func Init(cpu int, ncoresTotal int) (*apic.LocalApic, error) {
	ncores = ncoresTotal
	events.Register(cpu)

	a, err := apic.Init(cpu, func() { timerHandler(cpu) }, func(vector uint8) { ipiHandler(cpu, vector) })
	if err != nil {
		return nil, err
	}
	a.ConfigureTimer(apic.TickInterval, true)

	tlb.IPISender = func(target int) {
		apic.SendIPI(TlbShootdownVector, target)
	}

	return a, nil
}

// timerHandler finds the pid the current core is running, saves what
// state can be observed, hands the process back to the scheduler as
// Ready, and EOIs. It skips kernel work (pid 0) with an early return.
func timerHandler(cpu int) {
	r := events.RunnerFor(cpu)
	if r != nil {
		r.IncSystemClock()
	}

	pid := events.CurrentRunningEventPid(cpu)
	if pid != 0 {
		proc.Preempt(cpu, proc.Regs_t{}, 0, 0)
	}

	if a, ok := apic.Lookup(cpu); ok {
		a.EOI()
	}
}

func ipiHandler(cpu int, vector uint8) {
	switch vector {
	case TlbShootdownVector:
		tlb.Drain(cpu)
	}
	if a, ok := apic.Lookup(cpu); ok {
		a.EOI()
	}
}

/// Syscall dispatches a software interrupt on behalf of pid. Returns the
/// handler's result, or -1 if no handler has been installed.
func Syscall(cpu int, pid uint32, nr int, a1, a2, a3, a4, a5, a6 uint64) int64 {
	if SyscallHandler == nil {
		return -1
	}
	return SyscallHandler(cpu, pid, nr, a1, a2, a3, a4, a5, a6)
}

/// PageFault dispatches vector 14 on behalf of pid for a recoverable
/// #PF: look up the faulting process and hand it to
/// diag.HandlePageFault. code/rip
/// are the bytes at and address of the faulting instruction, carried
/// only for the diagnostic log line a failed resolution produces. There
/// is no real MMU under this hosted kernel to raise #PF on its own, so
/// whatever simulates a ring-3 memory access (or a test) calls this
/// directly, the same footing interrupts_test.go already exercises
/// Syscall on.
func PageFault(cpu int, pid uint32, faultAddr, errorCode uintptr, code []byte, rip uint64) defs.Err_t {
	p, ok := proc.Lookup(defs.Pid_t(pid))
	if !ok {
		return -defs.ESRCH
	}
	return diag.HandlePageFault(p, faultAddr, errorCode, code, rip)
}

/// GPFault dispatches vector 13 on behalf of pid: every general
/// protection violation terminates the faulting process, no lookup
/// needed beyond finding the PCB.
func GPFault(cpu int, pid uint32, code []byte, rip uint64) {
	p, ok := proc.Lookup(defs.Pid_t(pid))
	if !ok {
		return
	}
	diag.HandleGPFault(p, code, rip)
}
