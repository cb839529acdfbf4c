package fd

import "defs"
import "fdops"

/// File descriptor permission bits.
const (
	FD_READ    = 0x1 /// read permission
	FD_WRITE   = 0x2 /// write permission
	FD_CLOEXEC = 0x4 /// close-on-exec flag
)

/// Fd_t represents an open file descriptor. Every Fd_t is backed by a
/// device (console, raw disk, stat, profiling) rather than a path (fat16
/// files are reached through syscalls.RegisterMmapFile, not through an
/// Fd_t), so there is no Cwd_t/path-resolution half to this file at all.
type Fd_t struct {
	// Fops is an interface implemented via a pointer receiver, so Fops
	// is a reference, not a value.
	Fops  fdops.Fdops_i /// descriptor operations
	Perms int           /// permission bits
}

/// Copyfd duplicates an open file descriptor by reopening it.
func Copyfd(fd *Fd_t) (*Fd_t, defs.Err_t) {
	nfd := &Fd_t{}
	*nfd = *fd
	err := nfd.Fops.Reopen()
	if err != 0 {
		return nil, err
	}
	return nfd, 0
}

/// Close_panic closes the descriptor and panics on failure.
func Close_panic(f *Fd_t) {
	if f.Fops.Close() != 0 {
		panic("must succeed")
	}
}
