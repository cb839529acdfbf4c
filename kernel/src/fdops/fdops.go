// Package fdops defines the operations every open file descriptor
// implements. With fat16 files reached through
// syscalls.RegisterMmapFile rather than through fds, the only fds are
// device fds (console, raw disk, stat, profiling) — the
// interface stays narrow rather than carrying the read/write/seek/ioctl
// surface a full VFS fd needs.
package fdops

import "defs"

/// Fdops_i is implemented by each device-backed file descriptor.
type Fdops_i interface {
	Read(dst []uint8) (int, defs.Err_t)
	Write(src []uint8) (int, defs.Err_t)
	Close() defs.Err_t
	Reopen() defs.Err_t
}
