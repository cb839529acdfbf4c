package events

import "sync"
import "sync/atomic"

import "res"

/// NumPriorities is the number of run-queue priority levels; 0 is
/// highest.
const NumPriorities = 4

/// AgingDelay is the number of event-clock ticks a queued event may
/// wait before the runner promotes it to the next-higher priority.
const AgingDelay = 5

/// equeue_t is a FIFO of events belonging to one priority level,
/// shared between the runner that pops it and any waker that pushes a
/// woken event back onto it.
type equeue_t struct {
	sync.Mutex
	items []*Event
}

func (q *equeue_t) pushBack(e *Event) {
	q.Lock()
	q.items = append(q.items, e)
	q.Unlock()
}

func (q *equeue_t) popFront() *Event {
	q.Lock()
	defer q.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e
}

func (q *equeue_t) empty() bool {
	q.Lock()
	defer q.Unlock()
	return len(q.items) == 0
}

func (q *equeue_t) frontTick() (uint64, bool) {
	q.Lock()
	defer q.Unlock()
	if len(q.items) == 0 {
		return 0, false
	}
	return atomic.LoadUint64(&q.items[0].ScheduledTick), true
}

/// Event pairs a pinned future with the scheduling metadata the runner
/// needs to poll it fairly: which queue rewakes it, at what priority,
/// and when it was last made runnable.
type Event struct {
	Eid  EventId
	Pid  uint32 /// 0 for kernel work
	mu   sync.Mutex
	fut  Future
	Rewake   *equeue_t
	Priority int32  /// atomic
	ScheduledTick uint64 /// atomic
	canceled uint32 /// atomic

	/// budget holds this event's claim on limits.Syslimit.Events for
	/// as long as its identifier remains in pending_events; released
	/// once when the runner drops the event.
	budget *res.EventReservation
}

/// Cancel marks e so the next time the runner would poll it, it's
/// treated as finished instead. Used when something external to the
/// poll loop (a preempting timer interrupt, for instance) has already
/// superseded e with a fresh event for the same process; without this
/// the stale event would keep occupying its run queue slot forever,
/// since nothing else ever calls its future's Poll again.
func (e *Event) Cancel() {
	atomic.StoreUint32(&e.canceled, 1)
}

func (e *Event) isCanceled() bool {
	return atomic.LoadUint32(&e.canceled) != 0
}

func newEvent(fut Future, q *equeue_t, priority int, pid uint32, tick uint64) *Event {
	return &Event{
		Eid:           newEventId(),
		Pid:           pid,
		fut:           fut,
		Rewake:        q,
		Priority:      int32(priority),
		ScheduledTick: tick,
		budget:        res.ReserveEvent(),
	}
}

/// dropBudget releases this event's claim on the system-wide event
/// budget; idempotent, called once the runner stops tracking Eid in
/// pending_events.
func (e *Event) dropBudget() {
	e.budget.Release()
}

// poll drives the wrapped future exactly once, holding the event's own
// lock so a concurrent wake racing the runner's poll can't observe a
// half-updated future.
func (e *Event) poll(w Waker) Poll {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fut.Poll(w)
}

/// eventWaker closes the wake -> requeue cycle: waking an event just
/// pushes it back onto its Rewake queue, the queue for the priority it
/// was scheduled at (aging does not change Rewake). The queue
/// owns the event strongly (via the slice); the waker only holds the
/// *Event pointer handed to it at poll time, so a future that outlives
/// its event (it shouldn't) can't resurrect a dropped one — there is
/// nothing weak to upgrade here because Go has no Arc-style weak
/// pointers, so event lifetime is instead governed by pending_events
/// membership.
type eventWaker struct {
	e *Event
}

func (w *eventWaker) Wake() {
	w.e.Rewake.pushBack(w.e)
}
