// Package shutdown implements the one-shot broadcast signal of §4.D:
// the server owns a Signal, every spawned handler holds a Receiver,
// and Recv returns as soon as shutdown is triggered.
package shutdown

import "sync"

// Signal is the sender side of a shutdown broadcast. The zero value
// is not usable; construct with NewSignal.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

// NewSignal constructs a ready-to-use Signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Trigger fires shutdown. Safe to call more than once or from
// multiple goroutines; only the first call has effect.
func (s *Signal) Trigger() {
	s.once.Do(func() { close(s.ch) })
}

// Receiver hands out a receiver bound to this signal. Every handler
// gets its own Receiver but they all observe the same underlying
// trigger.
func (s *Signal) Receiver() *Receiver {
	return &Receiver{ch: s.ch}
}

// Receiver is a handler's private view onto a Signal: it adds the
// is_shutdown() short-circuit described in §4.D so repeated polls
// after the first observed trigger don't need to touch the channel.
type Receiver struct {
	ch   chan struct{}
	seen bool
}

// Done returns a channel that closes once shutdown fires. Intended
// for use in a select alongside other suspension points (§4.E's
// "race").
func (r *Receiver) Done() <-chan struct{} {
	return r.ch
}

// IsShutdown reports whether shutdown has already been witnessed by
// this receiver, without blocking.
func (r *Receiver) IsShutdown() bool {
	if r.seen {
		return true
	}
	select {
	case <-r.ch:
		r.seen = true
		return true
	default:
		return false
	}
}

// Recv blocks until shutdown fires, returning immediately if it
// already has.
func (r *Receiver) Recv() {
	<-r.ch
	r.seen = true
}
