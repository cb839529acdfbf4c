package smp

import "testing"
import "time"

import "vm"

func TestStartBringsUpEveryCore(t *testing.T) {
	if err := Start(3); err != nil {
		t.Fatal(err)
	}
	defer Stop()

	if got := Joined(); got != 3 {
		t.Fatalf("expected 3 cores joined, got %d", got)
	}
	if got := vm.NumCores(); got != 3 {
		t.Fatalf("expected vm.NumCores to report 3, got %d", got)
	}

	cores := Cores()
	if len(cores) != 3 {
		t.Fatalf("expected 3 core handles, got %d", len(cores))
	}
	for i, c := range cores {
		if c == nil {
			t.Fatalf("core %d never joined", i)
		}
		if c.ID != i {
			t.Fatalf("core %d has wrong ID %d", i, c.ID)
		}
		if c.Apic == nil {
			t.Fatalf("core %d has no local APIC", i)
		}
	}
}

func TestStartRejectsZeroCores(t *testing.T) {
	if err := Start(0); err == nil {
		t.Fatal("expected an error starting zero cores")
	}
}

func TestStopIsIdempotentBeforeStart(t *testing.T) {
	// Calling Stop before any Start must not panic or block.
	done := make(chan struct{})
	go func() {
		Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked with nothing started")
	}
}
