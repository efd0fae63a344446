// Package snapshot owns the currently viewed ticker and its fetched
// snapshot. Loads are last-call-wins: every Load takes a new sequence
// number and only the holder of the latest number may commit.
package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"stonklytics/internal/domain"
	"stonklytics/internal/pubsub"
)

// Messages shown to the user.
const (
	MsgMissingTicker = "Please enter a ticker symbol"
	MsgLoadFailed    = "Failed to fetch stock data"
)

// ErrSuperseded is returned by a Load whose result was discarded because a
// newer Load started before it finished.
var ErrSuperseded = errors.New("snapshot load superseded")

// State is the session state machine.
type State int

const (
	Idle State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Fetcher is the backend operation the controller depends on.
type Fetcher interface {
	GetSnapshot(ctx context.Context, ticker string) (*domain.StockSnapshot, error)
}

// View is a copy of the controller state.
type View struct {
	State    State
	Ticker   string
	Snapshot *domain.StockSnapshot
	Error    string
	// Current is the last successfully loaded ticker (the shareable one).
	Current string
}

// Options configures a Controller.
type Options struct {
	// OnTicker runs after a successful load with the committed ticker. It is
	// called with the controller lock held and must not call back into it.
	OnTicker func(ticker string)
	Logger   *slog.Logger
}

// Controller serializes snapshot loads for one viewing session.
type Controller struct {
	backend  Fetcher
	onTicker func(string)
	log      *slog.Logger

	mu      sync.Mutex
	seq     uint64
	state   State
	ticker  string
	snap    *domain.StockSnapshot
	errMsg  string
	current string

	events *pubsub.Broker[View]
}

// New creates an idle Controller.
func New(backend Fetcher, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		backend:  backend,
		onTicker: opts.OnTicker,
		log:      opts.Logger,
		events:   pubsub.NewBroker[View](),
	}
}

// Load fetches the snapshot for ticker and blocks until it completes. An
// empty ticker fails with a validation error without touching state or the
// network. If a newer Load starts first, the result is dropped and
// ErrSuperseded is returned.
func (c *Controller) Load(ctx context.Context, ticker string) (*domain.StockSnapshot, error) {
	t := domain.NormalizeTicker(ticker)
	if t == "" {
		return nil, domain.Validation(MsgMissingTicker)
	}

	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.state = Loading
	c.ticker = t
	c.snap = nil
	c.errMsg = ""
	v := c.viewLocked()
	c.mu.Unlock()
	c.events.Publish(v)

	snap, err := c.backend.GetSnapshot(ctx, t)

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		c.log.Debug("discarding stale snapshot", "ticker", t)
		return nil, ErrSuperseded
	}
	if err != nil {
		c.state = Failed
		c.errMsg = domain.UserMessage(err, MsgLoadFailed)
		v = c.viewLocked()
		c.mu.Unlock()
		c.log.Warn("loading snapshot", "ticker", t, "error", err)
		c.events.Publish(v)
		return nil, err
	}

	c.state = Loaded
	c.snap = snap
	c.current = t
	if c.onTicker != nil {
		c.onTicker(t)
	}
	v = c.viewLocked()
	c.mu.Unlock()
	c.events.Publish(v)

	cp := *snap
	return &cp, nil
}

// Reset returns to Idle and invalidates any in-flight load.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.seq++
	c.state = Idle
	c.ticker = ""
	c.snap = nil
	c.errMsg = ""
	v := c.viewLocked()
	c.mu.Unlock()
	c.events.Publish(v)
}

// View returns a copy of the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Subscribe returns a channel of state changes.
func (c *Controller) Subscribe(bufSize int) (int, <-chan View) {
	return c.events.Subscribe(bufSize)
}

// Unsubscribe stops delivery to a subscriber.
func (c *Controller) Unsubscribe(id int) {
	c.events.Unsubscribe(id)
}

func (c *Controller) viewLocked() View {
	v := View{State: c.state, Ticker: c.ticker, Error: c.errMsg, Current: c.current}
	if c.snap != nil {
		cp := *c.snap
		v.Snapshot = &cp
	}
	return v
}
