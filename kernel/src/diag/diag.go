// Package diag is the kernel's fault-diagnosis path: the page-fault and
// general-protection-fault handlers the interrupts package dispatches
// into, plus the panic path invariant failures fall through to. It
// disassembles the faulting instruction before deciding whether the
// fault is a recoverable demand-paging fault or a fatal protection
// violation.
package diag

import "fmt"

import "golang.org/x/arch/x86/x86asm"

import "caller"
import "defs"
import "klog"
import "proc"

/// DecodeAt disassembles the single x86-64 instruction at the front of
/// code (the bytes fetched from the faulting RIP) and renders it in GNU
/// syntax anchored at rip. Returns a placeholder string if code doesn't
/// hold a decodable instruction, which happens routinely in tests that
/// don't bother constructing real machine code.
func DecodeAt(code []byte, rip uint64) string {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return "<undecodable>"
	}
	s, err := x86asm.GNUSyntax(inst, rip, nil)
	if err != nil {
		return inst.String()
	}
	return s
}

/// HandlePageFault resolves a page fault for p at faultAddr with the
/// given hardware error code (present/write/user bits packed the way
/// Sys_pgfault expects). code/rip are the bytes at and address of
/// the faulting instruction, used only to annotate the log line this
/// produces if the fault can't be resolved. A fault outside any mapping
/// record, or one that violates the record's protection, terminates the
/// faulting process rather than the kernel.
func HandlePageFault(p *proc.Proc_t, faultAddr, errorCode uintptr, code []byte, rip uint64) defs.Err_t {
	err := p.Vm.Pgfault(0, faultAddr, errorCode)
	if err != 0 {
		klog.Printf("pid %d: #PF at %#x (rip %#x: %s): %v, terminating\n",
			p.Pid, faultAddr, rip, DecodeAt(code, rip), err)
		p.Exit()
	}
	return err
}

/// HandleGPFault always terminates p: unlike a page fault, a general
/// protection violation never has a recoverable demand-paging
/// interpretation, so there is no lookup-and-maybe-resolve step here.
func HandleGPFault(p *proc.Proc_t, code []byte, rip uint64) {
	klog.Printf("pid %d: #GP at rip %#x (%s), terminating\n", p.Pid, rip, DecodeAt(code, rip))
	p.Exit()
}

/// Panic records a kernel-fatal invariant failure to the log, dumps the
/// call chain that reached it, and halts by panicking the host
/// goroutine. Reserved for conditions the kernel itself cannot recover
/// from (a double free of a live frame, a corrupt PCB, a shootdown
/// addressed to a dead core) as opposed to a faulting user process,
/// which HandlePageFault/HandleGPFault terminate instead of the kernel.
func Panic(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	klog.Printf("PANIC: %s\n", msg)
	caller.Callerdump(2, klog.Printf)
	panic(msg)
}
