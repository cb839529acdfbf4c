package tlb

import "sync"
import "testing"

import "mem"

// TestShootdownCorrectness is an end-to-end scenario: core A maps a
// page writable, core B reads it (loads its TLB), core A unmaps it and
// shoots it down, core B must invalidate before it next touches the page.
func TestShootdownCorrectness(t *testing.T) {
	const coreA, coreB, ncores = 0, 1, 2

	var mu sync.Mutex
	var cached bool // stands in for "core B's TLB still has the old translation"
	var drained []Request

	prevFlusher, prevSender := Flusher, IPISender
	t.Cleanup(func() { Flusher, IPISender = prevFlusher, prevSender })

	Flusher = func(r Request) {
		mu.Lock()
		defer mu.Unlock()
		cached = false
		drained = append(drained, r)
	}
	delivered := make(chan int, 1)
	IPISender = func(core int) { delivered <- core }

	// Core B "loads its TLB" by observing the mapping once.
	mu.Lock()
	cached = true
	mu.Unlock()

	pmap := mem.Pa_t(0x1000)
	Shootdown(coreA, ncores, pmap, 0x7000, 1)

	if got := <-delivered; got != coreB {
		t.Fatalf("expected the IPI to target core %d, got %d", coreB, got)
	}

	// Core B's handler drains its own mailbox before returning to user mode.
	Drain(coreB)

	mu.Lock()
	defer mu.Unlock()
	if cached {
		t.Fatal("expected core B's stale translation to be invalidated by Drain")
	}
	if len(drained) != 1 || drained[0].Pmap != pmap || drained[0].Startva != 0x7000 {
		t.Fatalf("unexpected drained request: %+v", drained)
	}
}

func TestShootdownNeverTargetsSelf(t *testing.T) {
	prevSender := IPISender
	t.Cleanup(func() { IPISender = prevSender })

	var got []int
	IPISender = func(core int) { got = append(got, core) }

	Shootdown(3, 4, mem.Pa_t(0), 0x1000, 1)

	for _, c := range got {
		if c == 3 {
			t.Fatal("shootdown must not send an IPI to the initiating core")
		}
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 other cores notified, got %d", len(got))
	}
}

func TestShootdownZeroPagesIsNoop(t *testing.T) {
	prevSender := IPISender
	t.Cleanup(func() { IPISender = prevSender })

	called := false
	IPISender = func(core int) { called = true }

	Shootdown(0, 4, mem.Pa_t(0), 0x1000, 0)

	if called {
		t.Fatal("a zero-page shootdown must not notify any core")
	}
}

func TestDrainWithNoFlusherIsBookkeepingOnly(t *testing.T) {
	prevFlusher := Flusher
	Flusher = nil
	t.Cleanup(func() { Flusher = prevFlusher })

	Shootdown(0, 2, mem.Pa_t(0), 0x2000, 1)
	Drain(1) // must not panic with a nil Flusher

	mb := &mailboxes[1]
	mb.Lock()
	n := len(mb.pending)
	mb.Unlock()
	if n != 0 {
		t.Fatalf("expected Drain to clear the mailbox even with no Flusher, got %d pending", n)
	}
}
