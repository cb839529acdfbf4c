package events

import "testing"

// countdownFuture resolves Ready after n polls.
type countdownFuture struct {
	n    int
	runs *[]string
	name string
}

func (f *countdownFuture) Poll(w Waker) Poll {
	*f.runs = append(*f.runs, f.name)
	f.n--
	if f.n <= 0 {
		return Ready
	}
	w.Wake()
	return Pending
}

func TestScheduleFIFOWithinPriority(t *testing.T) {
	r := NewRunner()
	var runs []string
	r.ScheduleKernel(&countdownFuture{n: 1, runs: &runs, name: "a"}, 0)
	r.ScheduleKernel(&countdownFuture{n: 1, runs: &runs, name: "b"}, 0)

	for i := 0; i < 4 && (len(runs) < 2); i++ {
		r.Step()
	}

	if len(runs) != 2 || runs[0] != "a" || runs[1] != "b" {
		t.Fatalf("expected FIFO a,b got %v", runs)
	}
}

func TestPendingFutureRequeues(t *testing.T) {
	r := NewRunner()
	var runs []string
	r.ScheduleKernel(&countdownFuture{n: 3, runs: &runs, name: "x"}, 0)

	for i := 0; i < 10 && len(runs) < 3; i++ {
		r.Step()
	}

	if len(runs) != 3 {
		t.Fatalf("expected future polled 3 times, got %d", len(runs))
	}
}

func TestAgingPromotesStarvedEvent(t *testing.T) {
	r := NewRunner()
	var runs []string

	// A busy priority-0 stream that never finishes occupies the top
	// queue; without aging the priority-2 event would starve forever.
	r.ScheduleKernel(FutureFunc(func(w Waker) Poll {
		w.Wake()
		return Pending
	}), 0)
	low := r.ScheduleKernel(&countdownFuture{n: 1, runs: &runs, name: "low"}, 2)

	for i := 0; i < 200; i++ {
		r.Step()
		if low.Priority == 0 {
			break
		}
	}

	if low.Priority != 0 {
		t.Fatalf("expected starved event promoted to priority 0, got %d", low.Priority)
	}
}

func TestNanosleepBlocksAndWakesOnSchedule(t *testing.T) {
	r := NewRunner()
	woke := false

	r.ScheduleKernel(FutureFunc(func(w Waker) Poll {
		sleep := r.NanosleepCurrent(10)
		if sleep == nil {
			t.Fatal("NanosleepCurrent returned nil with a current event")
		}
		return sleep.Poll(w)
	}), 0)

	r.Step() // polls the sleep-arming future, event becomes blocked

	if !r.haveBlockedEvents() {
		t.Fatal("expected event to be blocked while asleep")
	}

	for i := 0; i < 20; i++ {
		r.IncSystemClock()
		r.awakeNextSleeper()
	}

	if r.haveBlockedEvents() {
		t.Fatal("expected sleeper to have woken once its target tick passed")
	}
	_ = woke
}

func TestEventIdsAreUnique(t *testing.T) {
	r := NewRunner()
	seen := make(map[EventId]bool)
	for i := 0; i < 50; i++ {
		e := r.ScheduleKernel(FutureFunc(func(w Waker) Poll { return Ready }), 0)
		if seen[e.Eid] {
			t.Fatalf("duplicate event id %d", e.Eid)
		}
		seen[e.Eid] = true
	}
}
