// Package smp brings up the kernel's per-core runners. A real kernel
// starts application processors with a STARTUP-IPI sequence and an
// ap_entry trampoline; this hosted kernel has no APs to IPI, so a
// "core" is a goroutine pinned to its own OS thread with
// runtime.LockOSThread, and bring-up is starting that goroutine and
// waiting for it to report in rather than polling a join counter.
// Logical core numbering follows the usual convention: 0 is the
// bootstrap processor, 1..N-1 are the APs.
package smp

import "fmt"
import "runtime"
import "sync"
import "sync/atomic"

import "apic"
import "interrupts"
import "vm"

/// Core is one running core's handle: its logical id and local APIC.
type Core struct {
	ID   int
	Apic *apic.LocalApic
}

var (
	mu      sync.Mutex
	cores   []*Core
	joined  int32
	stop    chan struct{}
	wg      sync.WaitGroup
)

/// Start brings up ncores logical cores, each pinned to its own locked
/// OS thread mirroring ap_entry's "myid starts from 1" numbering (core 0
/// is the bootstrap processor), wires vm.NumCores so TLB shootdown
/// addresses every core, and returns once every core has brought up its
/// local APIC and vector table. Returns an error if any core's
/// interrupts.Init fails; cores that already joined keep running.
func Start(ncores int) error {
	if ncores < 1 {
		return fmt.Errorf("smp: ncores must be >= 1, got %d", ncores)
	}

	mu.Lock()
	cores = make([]*Core, ncores)
	joined = 0
	stop = make(chan struct{})
	mu.Unlock()

	vm.NumCores = func() int { return ncores }
	// vm.CurCore is left at its single-core default (always 0): Go has
	// no per-goroutine analogue of a CPU's core-id register, so this
	// hosted tree can't tell which core issued a given shootdown. That
	// makes every shootdown broadcast to cores 1..ncores-1 even when it
	// originated on one of them, which is conservatively correct (the
	// originating core then just receives its own request and flushes
	// that range again on Drain; core 0 is never sent one).

	errs := make(chan error, ncores)
	for id := 0; id < ncores; id++ {
		wg.Add(1)
		go apEntry(id, ncores, errs)
	}

	for i := 0; i < ncores; i++ {
		if err := <-errs; err != nil {
			return err
		}
	}
	return nil
}

// apEntry is this tree's ap_entry: pin the goroutine to an OS thread
// (the hosted stand-in for a CPU actually fetching this logical core's
// instruction stream), bring up the local APIC and vector table via
// interrupts.Init, publish this core's handle, and report readiness.
// Runs until Stop closes the shared stop channel.
func apEntry(id, ncores int, errs chan<- error) {
	defer wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	a, err := interrupts.Init(id, ncores)
	if err != nil {
		errs <- fmt.Errorf("smp: core %d: %w", id, err)
		return
	}

	mu.Lock()
	cores[id] = &Core{ID: id, Apic: a}
	mu.Unlock()
	atomic.AddInt32(&joined, 1)
	errs <- nil

	<-stop
}

/// Joined reports how many cores have completed bring-up so far.
func Joined() int {
	return int(atomic.LoadInt32(&joined))
}

/// Cores returns the handles for every core that has joined, indexed by
/// logical core id; an entry is nil until that core finishes Start.
func Cores() []*Core {
	mu.Lock()
	defer mu.Unlock()
	out := make([]*Core, len(cores))
	copy(out, cores)
	return out
}

/// Stop signals every core goroutine started by Start to exit and waits
/// for them to do so, for tests that need a clean shutdown between
/// cases.
func Stop() {
	mu.Lock()
	s := stop
	stop = nil
	mu.Unlock()
	if s == nil {
		return
	}
	close(s)
	wg.Wait()
}
