package jobs

import (
	"sync"

	"mahira-clipper/internal/worker"
)

// Stream is a source of worker events, such as a *worker.Run.
type Stream interface {
	Events() <-chan worker.Event
}

// Listener receives forwarded events. It must not call back into the
// dispatcher or its own subscription.
type Listener func(worker.Event)

// Dispatcher forwards one stream at a time to one listener. Subscribing
// again detaches the previous listener, so restarts never deliver twice.
type Dispatcher struct {
	mu      sync.Mutex
	current *Subscription
}

// NewDispatcher creates a dispatcher with no subscription.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe detaches the current subscription and forwards every event of
// stream, in order and unchanged, to listener.
func (d *Dispatcher) Subscribe(stream Stream, listener Listener) *Subscription {
	sub := &Subscription{
		listener: listener,
		drained:  make(chan struct{}),
	}

	d.mu.Lock()
	prev := d.current
	d.current = sub
	d.mu.Unlock()

	if prev != nil {
		prev.Unsubscribe()
	}

	go sub.forward(stream.Events())
	return sub
}

// Unsubscribe detaches the current subscription, if any.
func (d *Dispatcher) Unsubscribe() {
	d.mu.Lock()
	sub := d.current
	d.current = nil
	d.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Subscription is one listener attached to one stream.
type Subscription struct {
	mu       sync.Mutex
	listener Listener
	drained  chan struct{}
}

func (s *Subscription) forward(events <-chan worker.Event) {
	defer close(s.drained)

	// Keep draining after unsubscribe so the producer never blocks on us.
	for ev := range events {
		s.mu.Lock()
		if s.listener != nil {
			s.listener(ev)
		}
		s.mu.Unlock()
	}
}

// Unsubscribe stops delivery. No listener call is in progress or starts
// after it returns. Calling it again is a no-op.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = nil
}

// Drained is closed once the underlying stream has been fully consumed.
func (s *Subscription) Drained() <-chan struct{} {
	return s.drained
}
