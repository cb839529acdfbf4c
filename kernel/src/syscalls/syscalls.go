// Package syscalls is the ring-3 entry point's dispatch table: given a
// syscall number and the calling process's argument registers, it runs
// the matching handler and returns the value that goes back into Rax.
// Handlers work against this kernel's Proc_t/Vm_t rather than a static
// process table and a single global mapper.
package syscalls

import "sync/atomic"

import "blockdev"
import "bounds"
import "console"
import "defs"
import "mem"
import "proc"

/// mmapCursor is the single monotonic bump allocator for anonymous and
/// file-backed mmap regions. Only growing upward from bounds.MmapBase
/// is supported.
var mmapCursor uint64 = uint64(bounds.MmapBase)

/// Syscall dispatches syscall number nr for pid on cpu, with up to six
/// argument registers in the SysV convention (rdi, rsi, rdx, r10, r8,
/// r9). It returns the value to place in the caller's Rax, which is
/// always a negative defs.Err_t on failure.
func Syscall(cpu int, pid uint32, nr int, a1, a2, a3, a4, a5, a6 uint64) int64 {
	p, ok := proc.Lookup(defs.Pid_t(pid))
	if !ok {
		return int64(-defs.ESRCH)
	}

	switch nr {
	case defs.SYS_EXIT:
		return sysExit(p)
	case defs.SYS_PRINT:
		return sysPrint(p, a1, a2)
	case defs.SYS_MMAP:
		return sysMmap(p, a1, a2, a3, a4, a5, a6)
	case defs.SYS_FORK:
		return sysFork(p)
	default:
		return int64(-defs.EINVAL)
	}
}

/// sysExit marks p Terminated. The caller (the scheduler's ring-3
/// future) observes Terminated on its next poll and drops the future;
/// reaping the process table entry happens once nothing else still
/// references p, same division of labor as exit.rs's caller-does-cleanup
/// convention.
func sysExit(p *proc.Proc_t) int64 {
	p.Exit()
	return 0
}

/// sysPrint copies len bytes starting at uva out of p's address space
/// and hands them to console.Print. Short reads (a fault partway
/// through the buffer) still print what was read.
func sysPrint(p *proc.Proc_t, uva, length uint64) int64 {
	if length == 0 {
		return 0
	}
	ub := p.Vm.Mkuserbuf(int(uva), int(length))
	buf := make([]uint8, length)
	n, err := ub.Uioread(buf)
	if err != 0 && n == 0 {
		return int64(err)
	}
	return int64(console.Print(buf[:n]))
}

/// sysMmap creates a new mapping of length bytes in p's address space
/// and returns its base virtual address. addr is ignored: the base
/// comes from mmapCursor. With MAP_ANON set the mapping is anonymous
/// memory; otherwise fdAndDev names a block device registered with
/// RegisterMmapFile and the mapping is backed by it at byte offset off
/// (EINVAL if none is registered under that number).
func sysMmap(p *proc.Proc_t, addr, length, prot, flags, fdAndDev, off uint64) int64 {
	if length == 0 {
		return int64(-defs.EINVAL)
	}
	alignedLen := int((length + uint64(mem.PGSIZE) - 1) &^ uint64(mem.PGSIZE-1))
	if !p.ReserveMmapPages(alignedLen / mem.PGSIZE) {
		return int64(-defs.ENOSPC)
	}
	base := atomic.AddUint64(&mmapCursor, uint64(alignedLen)) - uint64(alignedLen)

	perms := mem.PTE_U
	if prot&defs.PROT_WRITE != 0 {
		perms |= mem.PTE_W
	}

	p.Vm.Lock()
	if flags&defs.MAP_ANON != 0 {
		p.Vm.Vmadd_anon(int(base), alignedLen, perms)
	} else {
		dev := mmapFileDevice(int32(fdAndDev))
		if dev == nil {
			p.Vm.Unlock()
			return int64(-defs.EINVAL)
		}
		p.Vm.Vmadd_file(int(base), alignedLen, perms, dev, int(off))
	}
	p.Vm.Unlock()

	return int64(base)
}

/// mmapFiles maps the small integer a file-backed mmap call names (an
/// fd-like handle, used in place of a real fd table this kernel doesn't
/// have yet) to the block device serving it. Registered by whatever
/// brings up the filesystem layer.
var mmapFiles = map[int32]blockdev.BlockDevice{}

func mmapFileDevice(fd int32) blockdev.BlockDevice {
	return mmapFiles[fd]
}

/// RegisterMmapFile makes dev available to sys_mmap under the given fd
/// number.
func RegisterMmapFile(fd int32, dev blockdev.BlockDevice) {
	mmapFiles[fd] = dev
}

/// sysFork builds the child in two steps: a new address space first
/// (cloned root only, no copy-on-write of the parent's mappings yet),
/// then a fresh PCB spawned around it with the child's own pid and a
/// copy of the parent's register file.
func sysFork(p *proc.Proc_t) int64 {
	childAs, err := p.Vm.Fork()
	if err != 0 {
		return int64(err)
	}
	regs := p.Regs()
	child, serr := proc.Spawn(childAs, regs.Rip, regs.Rsp, p.Pid)
	if serr != 0 {
		return int64(serr)
	}
	child.SetRegs(regs)
	return int64(child.Pid)
}
