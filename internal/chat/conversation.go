// Package chat keeps the assistant conversation and turns it into backend
// chat requests.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"stonklytics/internal/domain"
	"stonklytics/internal/pubsub"
	"stonklytics/pkg/stonklytics"
)

const (
	Greeting      = "👋 Hello! I'm your AI finance assistant. Ask me anything about stocks, markets, or investing!"
	FallbackReply = "Sorry, I encountered an error. Please try again."
	MsgBusy       = "Please wait for the current reply"
)

// ErrCleared is returned by a Send whose reply was dropped because the
// transcript was cleared while it was outstanding.
var ErrCleared = errors.New("chat cleared while waiting for reply")

// Sender posts one chat exchange to the backend.
type Sender interface {
	Chat(ctx context.Context, req stonklytics.ChatRequest) (string, error)
}

var _ Sender = (*stonklytics.Client)(nil)

// Message is one line of the transcript.
type Message struct {
	Role string
	Text string
	// Failed marks the fallback reply substituted for a backend error.
	Failed bool
}

// Conversation is the transcript shown in the chat pane. The first
// message is always the greeting, which is never sent as history.
type Conversation struct {
	sender Sender
	log    *slog.Logger

	mu        sync.Mutex
	messages  []Message
	watchlist *domain.WatchlistContext
	sending   bool
	seq       uint64

	events *pubsub.Broker[int]
}

// NewConversation starts a conversation with the greeting.
func NewConversation(sender Sender, log *slog.Logger) *Conversation {
	if log == nil {
		log = slog.Default()
	}
	return &Conversation{
		sender:   sender,
		log:      log,
		messages: []Message{greeting()},
		events:   pubsub.NewBroker[int](),
	}
}

func greeting() Message {
	return Message{Role: domain.RoleModel, Text: Greeting}
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Sending reports whether a reply is outstanding.
func (c *Conversation) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// UseWatchlist attaches a watchlist the assistant may refer to. Nil detaches.
func (c *Conversation) UseWatchlist(w *domain.Watchlist) {
	c.mu.Lock()
	if w == nil {
		c.watchlist = nil
	} else {
		c.watchlist = domain.ContextFor(*w)
	}
	c.mu.Unlock()
}

// Send appends text as a user message and waits for the reply. Blank text
// is ignored. A backend failure appends FallbackReply and returns the
// error alongside it. If Clear runs before the reply arrives, the reply is
// dropped and ErrCleared is returned.
func (c *Conversation) Send(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, nil
	}

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return Message{}, domain.NewError(domain.KindBusy, MsgBusy)
	}
	req := stonklytics.ChatRequest{
		Message:   text,
		History:   historyOf(c.messages),
		Watchlist: c.watchlist,
	}
	c.messages = append(c.messages, Message{Role: domain.RoleUser, Text: text})
	c.sending = true
	seq := c.seq
	c.mu.Unlock()
	c.publish()

	reply, err := c.sender.Chat(ctx, req)

	msg := Message{Role: domain.RoleModel, Text: reply}
	if err != nil {
		c.log.Warn("chat request failed", "error", err)
		msg = Message{Role: domain.RoleModel, Text: FallbackReply, Failed: true}
	}

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		c.log.Debug("dropping chat reply after clear")
		return Message{}, ErrCleared
	}
	c.messages = append(c.messages, msg)
	c.sending = false
	c.mu.Unlock()
	c.publish()
	return msg, err
}

// Clear resets the transcript to the greeting. An outstanding reply is
// discarded when it arrives.
func (c *Conversation) Clear() {
	c.mu.Lock()
	c.seq++
	c.messages = []Message{greeting()}
	c.sending = false
	c.mu.Unlock()
	c.publish()
}

// Subscribe returns a channel signalled on every transcript change.
func (c *Conversation) Subscribe(bufSize int) (int, <-chan int) {
	return c.events.Subscribe(bufSize)
}

// Unsubscribe stops delivery to a subscriber.
func (c *Conversation) Unsubscribe(id int) {
	c.events.Unsubscribe(id)
}

func (c *Conversation) publish() {
	c.mu.Lock()
	n := len(c.messages)
	c.mu.Unlock()
	c.events.Publish(n)
}

// historyOf converts the transcript into backend history, skipping the
// leading greeting and fallback replies.
func historyOf(msgs []Message) []domain.ChatTurn {
	turns := make([]domain.ChatTurn, 0, len(msgs))
	for i, m := range msgs {
		if i == 0 && m.Role == domain.RoleModel && m.Text == Greeting {
			continue
		}
		if m.Failed {
			continue
		}
		turns = append(turns, domain.ChatTurn{
			Role:  m.Role,
			Parts: []domain.ChatPart{{Text: m.Text}},
		})
	}
	return turns
}
