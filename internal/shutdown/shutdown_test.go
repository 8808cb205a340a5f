package shutdown

import (
	"testing"
	"time"
)

func TestReceiverBlocksUntilTrigger(t *testing.T) {
	sig := NewSignal()
	r := sig.Receiver()

	done := make(chan struct{})
	go func() {
		r.Recv()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Recv returned before Trigger")
	case <-time.After(20 * time.Millisecond):
	}

	sig.Trigger()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Recv never returned after Trigger")
	}
}

func TestIsShutdownShortCircuits(t *testing.T) {
	sig := NewSignal()
	r := sig.Receiver()

	if r.IsShutdown() {
		t.Fatal("expected false before Trigger")
	}
	sig.Trigger()
	if !r.IsShutdown() {
		t.Fatal("expected true after Trigger")
	}
	if !r.IsShutdown() {
		t.Fatal("expected cached true on second poll")
	}
}

func TestMultipleReceiversAllObserveTrigger(t *testing.T) {
	sig := NewSignal()
	r1 := sig.Receiver()
	r2 := sig.Receiver()

	sig.Trigger()
	sig.Trigger() // must be safe to call twice

	r1.Recv()
	r2.Recv()
}
