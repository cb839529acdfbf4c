package defs

/// Err_t is the kernel's sum-typed result: zero is success, a negative
/// value is a failure. The constants below are positive magnitudes;
/// every fallible call site returns the negation (-defs.EFAULT and so
/// on), so the sign crossing the syscall ABI boundary carries the
/// errno-style "return -errno" convention rather than the Go error
/// interface.
type Err_t int

const (
	EFAULT   Err_t = 1  /// illegal or unmapped address
	ENOMEM   Err_t = 2  /// no physical frame / heap space available
	EINVAL   Err_t = 3  /// invalid argument
	EAGAIN   Err_t = 4  /// operation would block, try again
	ENOENT   Err_t = 5  /// process/mapping/event not found
	EEXIST   Err_t = 6  /// already mapped / already exists
	EACCES   Err_t = 7  /// protection violation
	E2BIG    Err_t = 8  /// argument too large
	ESRCH    Err_t = 9  /// no such process
	ENOSPC   Err_t = 10 /// resource limit exhausted
	ECLOSED  Err_t = 11 /// channel closed
	EPENDING Err_t = 12 /// would need to block; caller must poll again
)

/// Pid_t identifies a process. Zero is reserved for "kernel/none" and must
/// never be used as a process-table key.
type Pid_t uint32

/// Tid_t identifies a kernel-side thread of control (one per core runner).
type Tid_t uint32

/// Eid_t identifies an event within an event runner. Monotonically
/// increasing per runner; never reused while the event is pending.
type Eid_t uint64
