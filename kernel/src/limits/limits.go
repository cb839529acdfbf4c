package limits

import "unsafe"
import "sync/atomic"

/// Lhits counts limit hits, surfaced through the /stat-like introspection
/// device.
var Lhits int

/// Sysatomic_t is a numeric limit that can be atomically updated.
type Sysatomic_t int64

/// Syslimit_t tracks system-wide resource limits. Trimmed to the
/// resources this kernel still has: filesystem (Vnodes), futex
/// (Futexes), and networking (Arpents, Routes, Tcpsegs) limits have no
/// subsystem left to charge against.
type Syslimit_t struct {
	// protected by the process table lock
	Sysprocs int
	// event identifiers outstanding across all event runners
	Events Sysatomic_t
	// additional physical pages reserved for anonymous/file-backed
	// mmap beyond each process's first mapping
	Mfspgs Sysatomic_t
}

/// Syslimit describes the configured system-wide limits.
var Syslimit *Syslimit_t = MkSysLimit()

/// MkSysLimit returns a pointer to the default set of limits.
func MkSysLimit() *Syslimit_t {
	return &Syslimit_t{
		Sysprocs: 1e4,
		Events:   1 << 16,
		Mfspgs:   100000,
	}
}

func (s *Sysatomic_t) _aptr() *int64 {
	return (*int64)(unsafe.Pointer(s))
}

/// Given increases the limit by the provided amount.
func (s *Sysatomic_t) Given(_n uint) {
	n := int64(_n)
	if n < 0 {
		panic("too mighty")
	}
	atomic.AddInt64(s._aptr(), n)
}

/// Taken tries to decrement the limit by the provided amount. It returns
/// true on success.
func (s *Sysatomic_t) Taken(_n uint) bool {
	n := int64(_n)
	if n < 0 {
		panic("too mighty")
	}
	g := atomic.AddInt64(s._aptr(), -n)
	if g >= 0 {
		return true
	}
	atomic.AddInt64(s._aptr(), n)
	return false
}

/// Take decrements the limit and reports whether it succeeded.
func (s *Sysatomic_t) Take() bool {
	return s.Taken(1)
}

/// Give increments the limit by one.
func (s *Sysatomic_t) Give() {
	s.Given(1)
}
