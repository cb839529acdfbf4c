package apic

import "sync/atomic"
import "testing"
import "time"

func TestConfigureTimerFiresPeriodically(t *testing.T) {
	a, err := Init(10, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.StopTimer()

	var n int32
	a.onTimer = func() { atomic.AddInt32(&n, 1) }
	a.ConfigureTimer(2*time.Millisecond, true)

	time.Sleep(20 * time.Millisecond)
	a.StopTimer()

	if atomic.LoadInt32(&n) < 2 {
		t.Fatalf("expected several periodic ticks, got %d", n)
	}
}

func TestSendIPIInvokesTargetHandler(t *testing.T) {
	var got uint8
	done := make(chan struct{})
	if _, err := Init(11, nil, func(v uint8) {
		got = v
		close(done)
	}); err != nil {
		t.Fatal(err)
	}

	if err := SendIPI(0x81, 11); err != nil {
		t.Fatal(err)
	}
	<-done
	if got != 0x81 {
		t.Fatalf("expected vector 0x81, got %#x", got)
	}
}

func TestSendIPIUnknownCoreErrors(t *testing.T) {
	if err := SendIPI(0x81, MaxCores+5); err == nil {
		t.Fatal("expected error targeting an out-of-range core")
	}
}

func TestInitRejectsDoubleInit(t *testing.T) {
	if _, err := Init(12, nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := Init(12, nil, nil); err != ErrAlreadyInit {
		t.Fatalf("expected ErrAlreadyInit, got %v", err)
	}
}
