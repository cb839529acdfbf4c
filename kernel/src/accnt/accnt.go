package accnt

import "sync"
import "sync/atomic"
import "time"

import "util"

/**
 * Accnt_t accumulates per-process CPU accounting: how much of this
 * process's life has been spent running ring-3 code (user ticks) versus
 * inside the kernel on its behalf (system ticks).
 *
 * Both UserTicks and SysTicks are nanosecond-resolution ticks. The
 * embedded mutex lets callers take a consistent snapshot of the fields
 * when exporting usage statistics; the add paths themselves are lock-free
 * since the scheduler updates them far more often than anything reads
 * them back.
 */
type Accnt_t struct {
	/// Ticks of user (ring-3) time consumed.
	UserTicks int64
	/// Ticks of system (kernel) time consumed.
	SysTicks int64
	/// Protects concurrent access when reporting usage data.
	sync.Mutex
}

/// AddUserTicks adds delta ticks to the user-time counter.
func (a *Accnt_t) AddUserTicks(delta int) {
	atomic.AddInt64(&a.UserTicks, int64(delta))
}

/// AddSysTicks adds delta ticks to the system-time counter.
func (a *Accnt_t) AddSysTicks(delta int) {
	atomic.AddInt64(&a.SysTicks, int64(delta))
}

/// Tick returns the current wall-clock reading in nanoseconds, the unit
/// every accounting delta in this package is measured in.
func (a *Accnt_t) Tick() int {
	return int(time.Now().UnixNano())
}

/// UnchargeIOWait removes time spent waiting for I/O from system time,
/// given the tick the wait began at.
func (a *Accnt_t) UnchargeIOWait(since int) {
	d := a.Tick() - since
	a.AddSysTicks(-d)
}

/// UnchargeSleep removes time spent sleeping from system time, given the
/// tick the sleep began at.
func (a *Accnt_t) UnchargeSleep(since int) {
	d := a.Tick() - since
	a.AddSysTicks(-d)
}

/// Finish charges the time since startTick to system time, for use when a
/// process is tearing down and its final kernel-side work needs to be
/// accounted for.
func (a *Accnt_t) Finish(startTick int) {
	a.AddSysTicks(a.Tick() - startTick)
}

/// Merge folds another accounting record into this one, for a parent
/// collecting a reaped child's usage.
func (a *Accnt_t) Merge(n *Accnt_t) {
	a.Lock()
	a.UserTicks += n.UserTicks
	a.SysTicks += n.SysTicks
	a.Unlock()
}

/// Rusage returns a snapshot of the accounting information encoded as a
/// struct rusage suitable for copying into user memory.
func (a *Accnt_t) Rusage() []uint8 {
	a.Lock()
	ru := a.rusageBytes()
	a.Unlock()
	return ru
}

func (a *Accnt_t) rusageBytes() []uint8 {
	words := 4
	ret := make([]uint8, words*8)
	totv := func(ticks int64) (int, int) {
		secs := int(ticks / 1e9)
		usecs := int((ticks % 1e9) / 1000)
		return secs, usecs
	}
	off := 0
	// user timeval
	s, us := totv(a.UserTicks)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	off += 8
	// sys timeval
	s, us = totv(a.SysTicks)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	off += 8
	return ret
}
