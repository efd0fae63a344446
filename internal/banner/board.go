// Package banner holds the transient success/error message shown after an
// action. A message clears itself after a fixed delay; a newer message
// replaces the current one and restarts the delay.
package banner

import (
	"sync"
	"time"

	"stonklytics/internal/domain"
	"stonklytics/internal/pubsub"
)

// DefaultTTL is how long a message stays up.
const DefaultTTL = 3 * time.Second

// Kind is the tone of a message.
type Kind int

const (
	Info Kind = iota
	Success
	Error
)

// Message is one banner.
type Message struct {
	ID   uint64
	Kind Kind
	Text string
}

type timer interface {
	Stop() bool
}

// Board shows at most one message at a time.
type Board struct {
	ttl       time.Duration
	afterFunc func(time.Duration, func()) timer

	mu      sync.Mutex
	seq     uint64
	current *Message
	pending timer

	events *pubsub.Broker[Message]
}

// NewBoard creates a board whose messages clear after ttl.
func NewBoard(ttl time.Duration) *Board {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Board{
		ttl: ttl,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
		events: pubsub.NewBroker[Message](),
	}
}

// Show posts a message and schedules its removal.
func (b *Board) Show(kind Kind, text string) Message {
	b.mu.Lock()
	b.seq++
	m := Message{ID: b.seq, Kind: kind, Text: text}
	b.current = &m
	if b.pending != nil {
		b.pending.Stop()
	}
	id := m.ID
	b.pending = b.afterFunc(b.ttl, func() { b.expire(id) })
	b.mu.Unlock()

	b.events.Publish(m)
	return m
}

// Info posts a neutral message.
func (b *Board) Info(text string) Message { return b.Show(Info, text) }

// Success posts a success message.
func (b *Board) Success(text string) Message { return b.Show(Success, text) }

// Error posts an error message.
func (b *Board) Error(text string) Message { return b.Show(Error, text) }

// Report posts ok on success, or the user message of err with fallback.
func (b *Board) Report(err error, ok, fallback string) Message {
	if err != nil {
		return b.Error(domain.UserMessage(err, fallback))
	}
	return b.Success(ok)
}

// Current returns the visible message.
func (b *Board) Current() (Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return Message{}, false
	}
	return *b.current, true
}

// Dismiss removes the visible message now.
func (b *Board) Dismiss() {
	b.mu.Lock()
	if b.current == nil {
		b.mu.Unlock()
		return
	}
	id := b.current.ID
	b.mu.Unlock()
	b.expire(id)
}

// expire clears message id if it is still the current one.
func (b *Board) expire(id uint64) {
	b.mu.Lock()
	if b.current == nil || b.current.ID != id {
		b.mu.Unlock()
		return
	}
	b.current = nil
	if b.pending != nil {
		b.pending.Stop()
		b.pending = nil
	}
	b.mu.Unlock()
	b.events.Publish(Message{ID: id})
}

// Subscribe returns a channel of changes; an empty Text means cleared.
func (b *Board) Subscribe(bufSize int) (int, <-chan Message) {
	return b.events.Subscribe(bufSize)
}

// Unsubscribe stops delivery to a subscriber.
func (b *Board) Unsubscribe(id int) {
	b.events.Unsubscribe(id)
}
