// Package ipc implements the bounded multi-producer multi-consumer
// channel used for intra-kernel communication. It shares the waker
// protocol defined by package events: a full send or an empty recv
// spins briefly, then parks a single waker per side and resumes when
// the event engine re-polls it. The ring itself is a plain
// mutex-guarded slice rather than a lock-free MPMC queue.
package ipc

import "events"
import "runtime"
import "sync"
import "sync/atomic"

/// SpinLimit bounds how many times a full send or empty recv spins
/// before parking a waker instead.
const SpinLimit = 30

/// BatchLimit caps how many items TryRecvBatch drains in one call.
const BatchLimit = 32

type wakerState int32

const (
	wakerEmpty wakerState = iota
	wakerRegistering
	wakerReady
)

// atomicWaker_t holds at most one parked waker. Go interface values
// aren't comparable the way a will_wake check needs, so a racing
// register just overwrites the pending waker outright rather than
// skipping equivalent ones — harmless here since a channel side
// only ever has one waiter by construction (one engine per core,
// channels point-to-point or few-to-few).
type atomicWaker_t struct {
	state int32
	mu    sync.Mutex
	waker events.Waker
}

func (a *atomicWaker_t) register(w events.Waker) {
	if atomic.CompareAndSwapInt32(&a.state, int32(wakerEmpty), int32(wakerRegistering)) {
		a.mu.Lock()
		a.waker = w
		a.mu.Unlock()
		atomic.StoreInt32(&a.state, int32(wakerReady))
		return
	}
	a.mu.Lock()
	a.waker = w
	a.mu.Unlock()
}

func (a *atomicWaker_t) wake() {
	if atomic.SwapInt32(&a.state, int32(wakerEmpty)) == int32(wakerReady) {
		a.mu.Lock()
		w := a.waker
		a.waker = nil
		a.mu.Unlock()
		if w != nil {
			w.Wake()
		}
	}
}

/// SendError reports why try_send/send failed; Value recovers the item
/// that couldn't be delivered.
type SendError[T any] struct {
	Value  T
	Closed bool
}

/// RecvError distinguishes a transiently empty channel from one that is
/// empty and will never receive again.
type RecvError int

const (
	RecvEmpty RecvError = iota
	RecvClosed
)

func (e RecvError) Error() string {
	if e == RecvClosed {
		return "channel closed"
	}
	return "channel empty"
}

type ring_t[T any] struct {
	buf               []T
	head, tail, count int
}

func (r *ring_t[T]) cap() int { return len(r.buf) }
func (r *ring_t[T]) len() int { return r.count }
func (r *ring_t[T]) full() bool { return r.count == len(r.buf) }
func (r *ring_t[T]) empty() bool { return r.count == 0 }

func (r *ring_t[T]) push(v T) bool {
	if r.full() {
		return false
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	r.count++
	return true
}

func (r *ring_t[T]) pop() (T, bool) {
	var zero T
	if r.empty() {
		return zero, false
	}
	v := r.buf[r.tail]
	r.buf[r.tail] = zero
	r.tail = (r.tail + 1) % len(r.buf)
	r.count--
	return v, true
}

/// Channel_t is the shared state behind a Sender/Receiver pair.
type Channel_t[T any] struct {
	mu   sync.Mutex
	ring ring_t[T]

	closed      atomic.Bool
	senderCount int32

	sendersWaker   atomicWaker_t
	receiversWaker atomicWaker_t
}

/// NewChannel allocates a channel of the given capacity (must be >= 1)
/// and returns its sole initial sender and receiver.
func NewChannel[T any](capacity int) (*Sender[T], *Receiver[T]) {
	if capacity < 1 {
		panic("channel capacity must be >= 1")
	}
	ch := &Channel_t[T]{senderCount: 1}
	ch.ring.buf = make([]T, capacity)
	return &Sender[T]{ch: ch}, &Receiver[T]{ch: ch}
}

/// Capacity returns the channel's fixed ring size.
func (ch *Channel_t[T]) Capacity() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.ring.cap()
}

/// Len returns the number of items currently queued.
func (ch *Channel_t[T]) Len() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.ring.len()
}

/// IsEmpty reports whether the channel currently holds no items.
func (ch *Channel_t[T]) IsEmpty() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.ring.empty()
}

/// IsFull reports whether the channel is at capacity.
func (ch *Channel_t[T]) IsFull() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.ring.full()
}

/// IsClosed reports whether Close has been called, or the last sender
/// released.
func (ch *Channel_t[T]) IsClosed() bool {
	return ch.closed.Load()
}

/// Sender is a handle a producer uses to push items into a Channel_t.
type Sender[T any] struct {
	ch *Channel_t[T]
}

/// Clone hands out another sender referencing the same channel; the
/// channel only closes once every clone has been Released. Go has no
/// destructors, so callers must Release explicitly where the original
/// relies on Drop.
func (s *Sender[T]) Clone() *Sender[T] {
	atomic.AddInt32(&s.ch.senderCount, 1)
	return &Sender[T]{ch: s.ch}
}

/// Release drops this sender handle, closing the channel if it was the
/// last one outstanding.
func (s *Sender[T]) Release() {
	if atomic.AddInt32(&s.ch.senderCount, -1) == 0 {
		if !s.ch.closed.Swap(true) {
			s.ch.receiversWaker.wake()
		}
	}
}

/// TrySend attempts to enqueue value without blocking.
func (s *Sender[T]) TrySend(value T) (bool, SendError[T]) {
	if s.ch.closed.Load() {
		return false, SendError[T]{Value: value, Closed: true}
	}
	s.ch.mu.Lock()
	ok := s.ch.ring.push(value)
	n := s.ch.ring.len()
	s.ch.mu.Unlock()
	if ok {
		if n <= 1 {
			s.ch.receiversWaker.wake()
		}
		return true, SendError[T]{}
	}
	return false, SendError[T]{Value: value}
}

/// Close marks the channel closed, waking any parked sender or
/// receiver.
func (s *Sender[T]) Close() {
	if !s.ch.closed.Swap(true) {
		s.ch.sendersWaker.wake()
		s.ch.receiversWaker.wake()
	}
}

/// Send returns a Future that resolves once value has been enqueued or
/// the channel is known closed.
func (s *Sender[T]) Send(value T) events.Future {
	return &sendFuture[T]{s: s, value: value, has: true}
}

type sendFuture[T any] struct {
	s         *Sender[T]
	value     T
	has       bool
	spinCount int
	Err       SendError[T]
}

func (f *sendFuture[T]) Poll(w events.Waker) events.Poll {
	if f.s.ch.closed.Load() {
		f.Err = SendError[T]{Value: f.value, Closed: true}
		f.has = false
		return events.Ready
	}

	ok, err := f.s.TrySend(f.value)
	if ok {
		return events.Ready
	}
	if err.Closed {
		f.Err = err
		f.has = false
		return events.Ready
	}

	if f.spinCount < SpinLimit {
		f.spinCount++
		spinWait(f.spinCount)
		w.Wake()
		return events.Pending
	}
	f.s.ch.sendersWaker.register(w)
	return events.Pending
}

/// Receiver is a handle a consumer uses to pop items from a Channel_t.
type Receiver[T any] struct {
	ch *Channel_t[T]
}

/// TryRecv pops the oldest item without blocking.
func (r *Receiver[T]) TryRecv() (T, RecvError, bool) {
	r.ch.mu.Lock()
	v, ok := r.ch.ring.pop()
	r.ch.mu.Unlock()
	if ok {
		r.ch.sendersWaker.wake()
		return v, 0, true
	}
	var zero T
	if r.ch.closed.Load() {
		return zero, RecvClosed, false
	}
	return zero, RecvEmpty, false
}

/// TryRecvBatch drains up to BatchLimit queued items into buf, returning
/// the count actually popped.
func (r *Receiver[T]) TryRecvBatch(buf *[]T) (int, RecvError) {
	n := 0
	for n < BatchLimit {
		v, errv, ok := r.TryRecv()
		if !ok {
			if n > 0 {
				return n, 0
			}
			return 0, errv
		}
		*buf = append(*buf, v)
		n++
	}
	return n, 0
}

/// Recv returns a Future resolving to the next item, or to RecvClosed
/// once the channel is drained and closed.
func (r *Receiver[T]) Recv() events.Future {
	return &recvFuture[T]{r: r}
}

/// Len, IsEmpty, IsFull, IsClosed mirror the Channel_t accessors for
/// convenience on the receiver handle.
func (r *Receiver[T]) Len() int      { return r.ch.Len() }
func (r *Receiver[T]) IsEmpty() bool { return r.ch.IsEmpty() }
func (r *Receiver[T]) IsFull() bool  { return r.ch.IsFull() }
func (r *Receiver[T]) IsClosed() bool { return r.ch.IsClosed() }

type recvFuture[T any] struct {
	r         *Receiver[T]
	spinCount int
	Value     T
	Err       RecvError
}

func (f *recvFuture[T]) Poll(w events.Waker) events.Poll {
	v, errv, ok := f.r.TryRecv()
	if ok {
		f.Value = v
		return events.Ready
	}
	if errv == RecvClosed {
		f.Err = RecvClosed
		return events.Ready
	}
	if f.spinCount < SpinLimit {
		f.spinCount++
		spinWait(f.spinCount)
		w.Wake()
		return events.Pending
	}
	f.r.ch.receiversWaker.register(w)
	return events.Pending
}

// spinWait stands in for core::hint::spin_loop(): runtime.Gosched is
// the closest a hosted goroutine gets to a pause instruction.
func spinWait(spinCount int) {
	switch {
	case spinCount <= 10:
		runtime.Gosched()
	case spinCount <= 20:
		for i := 0; i < spinCount; i++ {
			runtime.Gosched()
		}
	default:
		for i := 0; i < 100; i++ {
			runtime.Gosched()
		}
	}
}
