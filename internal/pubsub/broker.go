// Package pubsub fans out state-change events to in-process subscribers.
// Delivery is non-blocking: a subscriber whose buffer is full misses the
// event, so subscribers should re-read state rather than rely on payloads.
package pubsub

import "sync"

// Broker broadcasts events of type E.
type Broker[E any] struct {
	mu        sync.Mutex
	nextSubID int
	subs      map[int]chan E
}

// NewBroker creates an empty broker.
func NewBroker[E any]() *Broker[E] {
	return &Broker[E]{subs: make(map[int]chan E)}
}

// Subscribe returns a channel that receives events. bufSize controls the
// channel buffer; slow consumers will have events dropped.
func (b *Broker[E]) Subscribe(bufSize int) (int, <-chan E) {
	ch := make(chan E, bufSize)
	b.mu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.subs[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker[E]) Unsubscribe(id int) {
	b.mu.Lock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends e to all subscribers without blocking (drop on full).
func (b *Broker[E]) Publish(e E) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Len returns the number of active subscribers.
func (b *Broker[E]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
