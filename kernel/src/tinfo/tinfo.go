package tinfo

import "sync"

import "defs"

// Stock Go has no per-goroutine user data slot, and this kernel pins
// one goroutine per core with runtime.LockOSThread instead of
// scheduling arbitrary goroutines onto cores, so "current" is tracked
// as per-core state instead: a fixed array indexed by core ID.

/// MaxCPUs bounds the per-core Current array. Chosen generously for a
/// hosted simulation; real hardware topology never enters into it.
const MaxCPUs = 64

/// Tnote_t stores per-thread state the scheduler and syscall layer read
/// to tell whether a thread has been killed out from under a blocking
/// operation.
type Tnote_t struct {
	State    interface{}
	Alive    bool
	Killed   bool
	Isdoomed bool
	sync.Mutex
	Killnaps struct {
		Killch chan bool
		Cond   *sync.Cond
		Kerr   defs.Err_t
	}
}

/// Doomed reports whether the thread is marked as doomed.
func (t *Tnote_t) Doomed() bool {
	return t.Isdoomed
}

/// Threadinfo_t tracks all thread notes.
type Threadinfo_t struct {
	Notes map[defs.Tid_t]*Tnote_t
	sync.Mutex
}

/// Init initializes the thread info map.
func (t *Threadinfo_t) Init() {
	t.Notes = make(map[defs.Tid_t]*Tnote_t)
}

var current [MaxCPUs]*Tnote_t

/// Current returns the thread note running on core cpu.
func Current(cpu int) *Tnote_t {
	ret := current[cpu]
	if ret == nil {
		panic("no current thread on this core")
	}
	return ret
}

/// SetCurrent installs p as the thread note running on core cpu.
func SetCurrent(cpu int, p *Tnote_t) {
	if p == nil {
		panic("nuts")
	}
	if current[cpu] != nil {
		panic("nuts")
	}
	current[cpu] = p
}

/// ClearCurrent removes the thread note running on core cpu.
func ClearCurrent(cpu int) {
	if current[cpu] == nil {
		panic("nuts")
	}
	current[cpu] = nil
}
