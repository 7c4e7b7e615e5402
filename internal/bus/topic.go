// Package bus provides typed in-process broadcast topics.
//
// A Topic replaces ambient global events: whoever creates a topic decides who
// may publish on it, and subscribers receive values over their own channel.
package bus

import (
	"sync"
)

// DefaultQueueSize is the per-subscriber queue length used when a topic is
// created with a non-positive size.
const DefaultQueueSize = 64

// Subscription is one receiver of a Topic.
type Subscription[T any] struct {
	topic  *Topic[T]
	ch     chan T
	mu     sync.Mutex
	closed bool
}

// C returns the channel values are delivered on. It is closed when the
// subscription is closed, by the subscriber, by the topic, or because the
// subscriber fell behind and its queue filled up.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.topic.remove(s)
	s.shut()
}

// Closed reports whether the subscription no longer receives values.
func (s *Subscription[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Subscription[T]) deliver(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- v:
		return true
	default:
		// Queue full: drop the subscriber rather than block the publisher.
		s.closeLocked()
		return false
	}
}

func (s *Subscription[T]) shut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Subscription[T]) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Topic fans published values out to all current subscribers, in publish
// order per subscriber.
type Topic[T any] struct {
	mu        sync.RWMutex
	subs      map[*Subscription[T]]struct{}
	queueSize int
	closed    bool
}

// NewTopic creates a topic whose subscribers buffer up to queueSize values.
func NewTopic[T any](queueSize int) *Topic[T] {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Topic[T]{
		subs:      make(map[*Subscription[T]]struct{}),
		queueSize: queueSize,
	}
}

// Subscribe registers a new subscriber. Subscribing to a closed topic returns
// a subscription whose channel is already closed.
func (t *Topic[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{topic: t, ch: make(chan T, t.queueSize)}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		s.closeLocked()
		return s
	}
	t.subs[s] = struct{}{}
	return s
}

// Publish delivers v to every subscriber without blocking. Subscribers whose
// queue is full are dropped. It returns the number of subscribers reached.
func (t *Topic[T]) Publish(v T) int {
	t.mu.RLock()
	subs := make([]*Subscription[T], 0, len(t.subs))
	for s := range t.subs {
		subs = append(subs, s)
	}
	t.mu.RUnlock()

	n := 0
	for _, s := range subs {
		if s.deliver(v) {
			n++
			continue
		}
		t.remove(s)
	}
	return n
}

// SubscriberCount returns the number of active subscribers.
func (t *Topic[T]) SubscriberCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// Close closes every subscription. Later publishes reach nobody.
func (t *Topic[T]) Close() {
	t.mu.Lock()
	subs := make([]*Subscription[T], 0, len(t.subs))
	for s := range t.subs {
		subs = append(subs, s)
	}
	t.subs = make(map[*Subscription[T]]struct{})
	t.closed = true
	t.mu.Unlock()

	for _, s := range subs {
		s.shut()
	}
}

func (t *Topic[T]) remove(s *Subscription[T]) {
	t.mu.Lock()
	delete(t.subs, s)
	t.mu.Unlock()
}
