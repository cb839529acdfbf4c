package ipc

import "events"
import "sync"
import "testing"

// drive polls a future to completion on the calling goroutine,
// re-polling it with a no-op waker until it is Ready; tests don't need
// a full event runner to exercise
// the channel's send/recv semantics.
func drive(f events.Future) {
	w := events.WakerFunc(func() {})
	for f.Poll(w) == events.Pending {
	}
}

func TestBasicSendRecv(t *testing.T) {
	tx, rx := NewChannel[int](2)

	if tx.ch.Capacity() != 2 {
		t.Fatalf("expected capacity 2, got %d", tx.ch.Capacity())
	}
	if !rx.IsEmpty() || rx.IsFull() || rx.IsClosed() {
		t.Fatal("fresh channel should be empty, not full, not closed")
	}

	drive(tx.Send(1))
	if rx.Len() != 1 {
		t.Fatalf("expected len 1, got %d", rx.Len())
	}
	drive(tx.Send(2))
	if !rx.IsFull() {
		t.Fatal("expected channel to be full at capacity")
	}

	rf := &recvFuture[int]{r: rx}
	drive(rf)
	if rf.Value != 1 {
		t.Fatalf("expected 1, got %d", rf.Value)
	}
	rf = &recvFuture[int]{r: rx}
	drive(rf)
	if rf.Value != 2 {
		t.Fatalf("expected 2, got %d", rf.Value)
	}
	if !rx.IsEmpty() {
		t.Fatal("expected channel empty after draining")
	}
}

func TestSendOrdering(t *testing.T) {
	tx, rx := NewChannel[int](100)
	for i := 0; i < 100; i++ {
		drive(tx.Send(i))
	}
	for i := 0; i < 100; i++ {
		rf := &recvFuture[int]{r: rx}
		drive(rf)
		if rf.Value != i {
			t.Fatalf("expected %d, got %d", i, rf.Value)
		}
	}
}

func TestMultipleProducersPreserveMultiset(t *testing.T) {
	tx, rx := NewChannel[int](100)

	var wg sync.WaitGroup
	expectedSum := 0
	for i := 0; i < 10; i++ {
		expectedSum += i
		wg.Add(1)
		sender := tx.Clone()
		go func(v int, s *Sender[int]) {
			defer wg.Done()
			drive(s.Send(v))
			s.Release()
		}(i, sender)
	}
	wg.Wait()
	tx.Release()

	sum := 0
	seen := make(map[int]bool)
	for i := 0; i < 10; i++ {
		rf := &recvFuture[int]{r: rx}
		drive(rf)
		if rf.Value < 0 || rf.Value > 9 || seen[rf.Value] {
			t.Fatalf("unexpected or duplicate value %d", rf.Value)
		}
		seen[rf.Value] = true
		sum += rf.Value
	}
	if sum != expectedSum {
		t.Fatalf("expected sum %d, got %d", expectedSum, sum)
	}
}

func TestCloseDrainsThenReportsClosed(t *testing.T) {
	tx, rx := NewChannel[int](10)
	drive(tx.Send(1))
	drive(tx.Send(2))

	tx.Close()
	if !rx.IsClosed() {
		t.Fatal("expected channel to report closed")
	}

	rf := &recvFuture[int]{r: rx}
	drive(rf)
	if rf.Value != 1 {
		t.Fatalf("expected 1, got %d", rf.Value)
	}
	rf = &recvFuture[int]{r: rx}
	drive(rf)
	if rf.Value != 2 {
		t.Fatalf("expected 2, got %d", rf.Value)
	}

	rf = &recvFuture[int]{r: rx}
	drive(rf)
	if rf.Err != RecvClosed {
		t.Fatalf("expected RecvClosed once drained, got %v", rf.Err)
	}

	sf := &sendFuture[int]{s: tx, value: 3, has: true}
	drive(sf)
	if !sf.Err.Closed {
		t.Fatal("expected send on closed channel to report Closed")
	}
}

func TestLastSenderReleaseClosesChannel(t *testing.T) {
	tx, rx := NewChannel[int](10)
	tx2 := tx.Clone()

	drive(tx.Send(1))
	drive(tx2.Send(2))

	tx.Release()
	drive(tx2.Send(3))

	for _, want := range []int{1, 2, 3} {
		rf := &recvFuture[int]{r: rx}
		drive(rf)
		if rf.Value != want {
			t.Fatalf("expected %d, got %d", want, rf.Value)
		}
	}

	tx2.Release()

	rf := &recvFuture[int]{r: rx}
	drive(rf)
	if rf.Err != RecvClosed {
		t.Fatal("expected channel closed once every sender released")
	}
}

func TestTryOperations(t *testing.T) {
	tx, rx := NewChannel[int](2)

	if ok, _ := tx.TrySend(1); !ok {
		t.Fatal("expected first send to succeed")
	}
	if ok, _ := tx.TrySend(2); !ok {
		t.Fatal("expected second send to succeed")
	}
	if ok, err := tx.TrySend(3); ok || err.Value != 3 {
		t.Fatal("expected third send to report Full")
	}

	if v, _, ok := rx.TryRecv(); !ok || v != 1 {
		t.Fatalf("expected 1, got %d ok=%v", v, ok)
	}
	if v, _, ok := rx.TryRecv(); !ok || v != 2 {
		t.Fatalf("expected 2, got %d ok=%v", v, ok)
	}
	if _, errv, ok := rx.TryRecv(); ok || errv != RecvEmpty {
		t.Fatal("expected empty channel to report RecvEmpty")
	}
}

func TestTryRecvBatchCapsAtBatchLimit(t *testing.T) {
	tx, rx := NewChannel[int](100)
	for i := 0; i < 50; i++ {
		drive(tx.Send(i))
	}

	var buf []int
	n, _ := rx.TryRecvBatch(&buf)
	if n != BatchLimit {
		t.Fatalf("expected batch capped at %d, got %d", BatchLimit, n)
	}
	for i := 0; i < BatchLimit; i++ {
		if buf[i] != i {
			t.Fatalf("expected %d at index %d, got %d", i, i, buf[i])
		}
	}
	for i := BatchLimit; i < 50; i++ {
		rf := &recvFuture[int]{r: rx}
		drive(rf)
		if rf.Value != i {
			t.Fatalf("expected %d, got %d", i, rf.Value)
		}
	}
}
