package viewport

import (
	"sync"

	"github.com/leapstack-labs/gridview/pkg/core"
)

// Subscription is the delta channel of one viewport request. It registers
// with the remote handle as soon as the handle exists and queues events
// until the request's snapshot has been materialized, then hands them to
// the controller in arrival order.
//
// Close is the only teardown path: it unregisters the callback, closes the
// remote handle and drops anything still queued.
type Subscription struct {
	generation uint64
	handle     core.ViewportHandle
	deliver    func(gen uint64, ev core.DeltaEvent)

	mu          sync.Mutex
	ready       bool
	closed      bool
	queue       []core.DeltaEvent
	unsubscribe func()
}

func newSubscription(gen uint64, handle core.ViewportHandle, deliver func(uint64, core.DeltaEvent)) *Subscription {
	s := &Subscription{generation: gen, handle: handle, deliver: deliver}
	unsub := handle.OnUpdate(s.receive)
	s.mu.Lock()
	s.unsubscribe = unsub
	s.mu.Unlock()
	return s
}

// Generation returns the request generation this subscription belongs to.
func (s *Subscription) Generation() uint64 { return s.generation }

// receive is registered with the remote handle. The handle must deliver
// events for one window serially.
func (s *Subscription) receive(ev core.DeltaEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if !s.ready {
		s.queue = append(s.queue, ev)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.deliver(s.generation, ev)
}

// start marks the snapshot as materialized and returns the events that
// arrived before it, oldest first.
func (s *Subscription) start() []core.DeltaEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	q := s.queue
	s.queue = nil
	return q
}

// Close unregisters from the remote handle and closes it. Idempotent.
func (s *Subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.queue = nil
	unsub := s.unsubscribe
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	return s.handle.Close()
}
