package events

import "container/heap"
import "sync"

/// NanosToTicks converts a nanosecond duration into event-clock ticks.
/// Nothing in this tree overwrites it, so ticks and nanoseconds are
/// treated as equal, which keeps sleeps meaningful in a hosted test.
var NanosToTicks = func(nanos uint64) uint64 { return nanos }

type sleeper_t struct {
	targetTick uint64
	ev         *Event
}

type sleepHeap_t []*sleeper_t

func (h sleepHeap_t) Len() int            { return len(h) }
func (h sleepHeap_t) Less(i, j int) bool  { return h[i].targetTick < h[j].targetTick }
func (h sleepHeap_t) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *sleepHeap_t) Push(x interface{}) { *h = append(*h, x.(*sleeper_t)) }
func (h *sleepHeap_t) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

/// Runner is the per-core event engine: NumPriorities FIFO run queues,
/// the set of event identifiers still pending, the subset of those
/// that are blocked (asleep or parked on a channel), a min-heap of
/// sleepers ordered by wakeup tick, and the two clocks the aging and
/// sleep logic run off of.
type Runner struct {
	mu sync.Mutex // stands in for interrupt-disable: the aging/pop/poll
	// cycle and sleep bookkeeping run as one critical section, so on
	// real hardware this would run with interrupts off; here a mutex
	// serializes it instead since this core's timer handler is itself
	// just another goroutine.

	queues  [NumPriorities]*equeue_t
	pending map[EventId]bool
	blocked map[EventId]bool
	sleeps  sleepHeap_t

	current    *Event
	eventClock uint64
	sysClock   uint64
}

/// NewRunner allocates an idle event runner.
func NewRunner() *Runner {
	r := &Runner{
		pending: make(map[EventId]bool),
		blocked: make(map[EventId]bool),
	}
	for i := range r.queues {
		r.queues[i] = &equeue_t{}
	}
	return r
}

/// Schedule enqueues future at priority (0 highest). pid is 0 for
/// kernel work.
func (r *Runner) Schedule(fut Future, priority int, pid uint32) *Event {
	if priority < 0 || priority >= NumPriorities {
		panic("invalid event priority")
	}
	r.mu.Lock()
	e := newEvent(fut, r.queues[priority], priority, pid, r.eventClock)
	r.mu.Unlock()
	r.queues[priority].pushBack(e)
	r.mu.Lock()
	r.pending[e.Eid] = true
	r.mu.Unlock()
	return e
}

/// ScheduleKernel schedules kernel-owned work (pid 0) at priority.
func (r *Runner) ScheduleKernel(fut Future, priority int) *Event {
	return r.Schedule(fut, priority, 0)
}

/// ScheduleProcess schedules a process's future at the lowest priority
/// so kernel work always preempts it.
func (r *Runner) ScheduleProcess(fut Future, pid uint32) *Event {
	return r.Schedule(fut, NumPriorities-1, pid)
}

/// CurrentEvent returns the event this runner is polling right now, or
/// nil between polls.
func (r *Runner) CurrentEvent() *Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

/// IncSystemClock advances the wall-clock tick the sleep heap is keyed
/// against; the local timer interrupt drives this.
func (r *Runner) IncSystemClock() {
	r.mu.Lock()
	r.sysClock++
	r.mu.Unlock()
}

/// NanosleepCurrent parks the currently running event until nanos have
/// elapsed, returning the future the caller should return Pending from.
/// Must be called from within the future being polled.
func (r *Runner) NanosleepCurrent(nanos uint64) Future {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.current
	if e == nil {
		return nil
	}
	target := r.sysClock + NanosToTicks(nanos)
	heap.Push(&r.sleeps, &sleeper_t{targetTick: target, ev: e})
	r.blocked[e.Eid] = true
	return FutureFunc(func(w Waker) Poll { return Pending })
}

func (r *Runner) haveUnblockedEvents() bool {
	for _, q := range r.queues {
		if !q.empty() {
			return true
		}
	}
	return false
}

func (r *Runner) haveBlockedEvents() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.blocked) > 0
}

// age implements step (a): promote any queue head that has waited past
// AgingDelay ticks to the next-higher priority.
func (r *Runner) age() {
	r.mu.Lock()
	clock := r.eventClock
	r.mu.Unlock()
	for i := 1; i < NumPriorities; i++ {
		tick, ok := r.queues[i].frontTick()
		if !ok || tick+AgingDelay > clock {
			continue
		}
		e := r.queues[i].popFront()
		if e == nil {
			continue
		}
		r.mu.Lock()
		e.Priority = int32(i - 1)
		e.ScheduledTick = r.eventClock
		r.mu.Unlock()
		r.queues[i-1].pushBack(e)
		Metrics.AgingPromotions.Inc()
	}
}

// awakeNextSleeper implements step (b): wake every sleeper whose target
// tick has arrived.
func (r *Runner) awakeNextSleeper() {
	for {
		r.mu.Lock()
		if len(r.sleeps) == 0 {
			r.mu.Unlock()
			return
		}
		head := r.sleeps[0]
		if head.targetTick > r.sysClock {
			r.mu.Unlock()
			return
		}
		heap.Pop(&r.sleeps)
		delete(r.blocked, head.ev.Eid)
		r.mu.Unlock()
		head.ev.Rewake.pushBack(head.ev)
	}
}

// pick implements step (c): scan priorities low-number-first for the
// next runnable event.
func (r *Runner) pick() *Event {
	for i := 0; i < NumPriorities; i++ {
		if e := r.queues[i].popFront(); e != nil {
			return e
		}
	}
	return nil
}

/// Step runs one iteration of the run loop: age, wake sleepers, pick an
/// event, poll it once. Returns false when there was no runnable event
/// this iteration (RunLoop then wakes any due sleeper if
/// haveBlockedEvents reports blocked work, and idles).
//
// CurrentEvent keeps reporting the event Step last dispatched even
// after Step returns, rather than clearing it: a real CPU keeps running
// the process it switched to until something preempts it, and the
// local timer interrupt that does the preempting runs concurrently
// with Step, not only during it. The next call to Step's pick
// overwrites it with whatever runs next.
func (r *Runner) Step() bool {
	r.age()
	r.awakeNextSleeper()
	if !r.haveUnblockedEvents() {
		return false
	}

	var e *Event
	for {
		e = r.pick()
		if e == nil {
			return false
		}
		if !e.isCanceled() {
			break
		}
		r.mu.Lock()
		delete(r.pending, e.Eid)
		r.mu.Unlock()
		e.dropBudget()
	}

	r.mu.Lock()
	r.current = e
	live := r.pending[e.Eid]
	if live {
		r.eventClock++
	}
	clock := r.eventClock
	r.mu.Unlock()

	if live {
		recordPoll(e.Priority)
		w := &eventWaker{e: e}
		ready := e.isCanceled() || e.poll(w) == Ready

		if !ready {
			e.ScheduledTick = clock
			r.mu.Lock()
			blocked := r.blocked[e.Eid]
			r.mu.Unlock()
			if !blocked {
				r.queues[e.Priority].pushBack(e)
			}
		} else {
			r.mu.Lock()
			delete(r.pending, e.Eid)
			r.mu.Unlock()
			e.dropBudget()
		}
	}

	return true
}

/// RunLoop drives Step until stop is closed, idling (via idle, which
/// the apic/interrupt layer wires to "enable interrupts and halt")
/// whenever Step finds no runnable event, after waking any sleeper that
/// is due.
func (r *Runner) RunLoop(stop <-chan struct{}, idle func()) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		if r.Step() {
			continue
		}
		if r.haveBlockedEvents() {
			r.awakeNextSleeper()
		}
		if idle != nil {
			idle()
		}
	}
}
