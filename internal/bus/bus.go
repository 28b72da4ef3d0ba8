package bus

import (
	"errors"
	"sync"
)

// Bus errors.
var (
	ErrBusClosed        = errors.New("bus is closed")
	ErrSubscriberExists = errors.New("subscriber id already registered")
	ErrNoSubscriber     = errors.New("subscriber not found")
	ErrNilHandler       = errors.New("handler must not be nil")
)

// queueCap bounds the undelivered events kept per kind per subscriber.
// When a subscriber falls behind, the oldest event of that kind is
// dropped; the publisher never blocks.
const queueCap = 16

// Handler consumes delivered events. It runs on the subscriber's delivery
// goroutine, so a slow handler delays only its own subscription.
type Handler func(Event)

// Bus is an in-process publish/subscribe hub. Publish is non-blocking;
// each subscriber receives events of a given kind in publish order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	closed bool
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		subs: make(map[string]*subscriber),
	}
}

// Subscribe registers a handler under id and starts its delivery
// goroutine. Events published before subscription are not replayed.
func (b *Bus) Subscribe(id string, handler Handler) error {
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subs[id]; exists {
		return ErrSubscriberExists
	}

	sub := newSubscriber(id, handler)
	b.subs[id] = sub
	go sub.deliver()

	return nil
}

// Unsubscribe removes a subscriber and stops its delivery goroutine.
// Queued events not yet handled are discarded.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, exists := b.subs[id]
	if !exists {
		return ErrNoSubscriber
	}
	sub.close()
	delete(b.subs, id)
	return nil
}

// Publish enqueues ev for every current subscriber and returns without
// waiting on delivery.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, sub := range b.subs {
		sub.enqueue(ev)
	}
}

// Dropped returns how many events a subscriber has lost to backpressure.
func (b *Bus) Dropped(id string) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sub, exists := b.subs[id]
	if !exists {
		return 0, ErrNoSubscriber
	}
	return sub.droppedCount(), nil
}

// Close shuts down the bus and every subscriber.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, sub := range b.subs {
		sub.close()
	}
	b.subs = nil
}

// subscriber holds one registration: bounded FIFO queues per kind and the
// goroutine draining them into the handler.
type subscriber struct {
	id      string
	handler Handler

	mu      sync.Mutex
	cond    *sync.Cond
	queues  map[Kind][]Event
	kinds   []Kind
	nextIdx int
	dropped uint64
	closed  bool
}

func newSubscriber(id string, handler Handler) *subscriber {
	s := &subscriber{
		id:      id,
		handler: handler,
		queues:  make(map[Kind][]Event),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// enqueue appends ev to its kind's queue, evicting the oldest event of
// that kind when full.
func (s *subscriber) enqueue(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	q, known := s.queues[ev.Kind]
	if !known {
		s.kinds = append(s.kinds, ev.Kind)
	}
	if len(q) >= queueCap {
		q = q[1:]
		s.dropped++
	}
	s.queues[ev.Kind] = append(q, ev)
	s.cond.Signal()
}

// deliver drains the queues into the handler, one event at a time,
// round-robin across kinds so no kind starves another.
func (s *subscriber) deliver() {
	for {
		s.mu.Lock()
		ev, ok := s.pop()
		for !ok && !s.closed {
			s.cond.Wait()
			ev, ok = s.pop()
		}
		if !ok {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.handler(ev)
	}
}

// pop removes the next event, scanning kinds from the round-robin cursor.
// Caller holds the lock.
func (s *subscriber) pop() (Event, bool) {
	for i := 0; i < len(s.kinds); i++ {
		idx := (s.nextIdx + i) % len(s.kinds)
		kind := s.kinds[idx]
		q := s.queues[kind]
		if len(q) == 0 {
			continue
		}
		s.queues[kind] = q[1:]
		s.nextIdx = (idx + 1) % len(s.kinds)
		return q[0], true
	}
	return Event{}, false
}

func (s *subscriber) droppedCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.cond.Broadcast()
}
