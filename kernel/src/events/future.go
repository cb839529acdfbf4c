// Package events implements the per-core cooperative event engine: a
// small Future/Poll/Waker protocol and a priority-queued runner that
// polls one future at a time on the current kernel stack. There is no
// patched runtime here to schedule work as real goroutines, so events
// are plain values driven by an explicit run loop instead.
package events

import "sync/atomic"

/// Poll is the result of driving a Future one step.
type Poll int

const (
	Pending Poll = iota
	Ready
)

/// Waker is handed to a Future on every poll; calling Wake asks the
/// runner to re-poll the event that owns this future.
type Waker interface {
	Wake()
}

/// WakerFunc adapts a plain function to the Waker interface.
type WakerFunc func()

func (f WakerFunc) Wake() { f() }

/// Future is the unit of schedulable work. Poll must not block; it
/// returns Pending after registering w to be woken when progress is
/// possible again.
type Future interface {
	Poll(w Waker) Poll
}

/// FutureFunc adapts a poll function into a Future, for small one-shot
/// futures that don't need their own named type.
type FutureFunc func(w Waker) Poll

func (f FutureFunc) Poll(w Waker) Poll { return f(w) }

/// EventId is a process-wide unique, monotonically increasing event
/// identifier.
type EventId uint64

var nextEventId uint64

func newEventId() EventId {
	return EventId(atomic.AddUint64(&nextEventId, 1))
}
