package defs

/// Syscall numbers. This kernel does not aim for POSIX compliance, so
/// the numbering is local, not the Linux ABI's.
const (
	SYS_EXIT  = 1
	SYS_PRINT = 3
	SYS_MMAP  = 4
	SYS_FORK  = 5
)

/// Prot flags for sys_mmap, matching mmap(2) bit positions closely enough
/// that user programs built against a standard libc header feel familiar.
const (
	PROT_NONE  = 0x0
	PROT_READ  = 0x1
	PROT_WRITE = 0x2
	PROT_EXEC  = 0x4
)

/// Map flags for sys_mmap. Only ANON has any effect; the rest
/// are accepted (and ignored) for source compatibility with user programs.
const (
	MAP_SHARED    = 0x1
	MAP_PRIVATE   = 0x2
	MAP_ANON      = 0x20
	MAP_ANONYMOUS = MAP_ANON
	MAP_FIXED     = 0x10
)

/// FdAnon is the fd value that marks an anonymous (non-file-backed) mapping.
const FdAnon = -1
