// Package search implements debounced ticker search-as-you-type.
//
// Each keystroke restarts a quiet-period timer. When the timer fires, one
// backend search is issued for the latest query. A monotonically increasing
// token guards every commit, so a timer or response that belongs to an
// older keystroke can never overwrite newer state. Search failures are
// swallowed: they hide the list but never surface an error while typing.
package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"stonklytics/internal/domain"
	"stonklytics/internal/pubsub"
)

const (
	DefaultDebounce = 450 * time.Millisecond
	DefaultMinChars = 2
)

// Searcher is the backend operation the controller depends on.
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.SearchSuggestion, error)
}

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	Debounce time.Duration
	MinChars int
	// OnSelect receives the chosen ticker, typically to start a snapshot load.
	OnSelect func(ticker string)
	Logger   *slog.Logger
}

// View is what the suggestion dropdown renders.
type View struct {
	Query       string
	Suggestions []domain.SearchSuggestion
	Visible     bool
}

type timer interface {
	Stop() bool
}

// Controller owns the suggestion list. It is safe for concurrent use.
type Controller struct {
	backend  Searcher
	debounce time.Duration
	minChars int
	onSelect func(string)
	log      *slog.Logger

	// afterFunc is replaced in tests.
	afterFunc func(time.Duration, func()) timer

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	seq         uint64 // token of the latest keystroke
	hiddenAt    uint64 // results for tokens <= hiddenAt stay hidden
	pending     timer
	query       string
	suggestions []domain.SearchSuggestion
	visible     bool

	events *pubsub.Broker[View]
}

// New creates a Controller.
func New(backend Searcher, opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MinChars <= 0 {
		opts.MinChars = DefaultMinChars
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		backend:  backend,
		debounce: opts.Debounce,
		minChars: opts.MinChars,
		onSelect: opts.OnSelect,
		log:      opts.Logger,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
		ctx:    ctx,
		cancel: cancel,
		events: pubsub.NewBroker[View](),
	}
}

// InputChanged records a new query. Queries shorter than the minimum clear
// the list at once and invalidate any pending timer or in-flight search.
func (c *Controller) InputChanged(query string) {
	c.mu.Lock()
	c.query = query
	c.seq++
	c.stopPendingLocked()

	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < c.minChars {
		c.suggestions = nil
		c.visible = false
		v := c.viewLocked()
		c.mu.Unlock()
		c.events.Publish(v)
		return
	}

	seq := c.seq
	c.pending = c.afterFunc(c.debounce, func() { c.fire(seq, q) })
	c.mu.Unlock()
}

func (c *Controller) fire(seq uint64, query string) {
	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.mu.Unlock()

	results, err := c.backend.Search(c.ctx, query)

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		c.log.Debug("discarding superseded search", "query", query)
		return
	}
	if err != nil {
		c.log.Debug("search failed", "query", query, "error", err)
		c.suggestions = nil
		c.visible = false
	} else {
		c.suggestions = append([]domain.SearchSuggestion(nil), results...)
		c.visible = seq > c.hiddenAt
	}
	v := c.viewLocked()
	c.mu.Unlock()
	c.events.Publish(v)
}

// Select clears the list and hands ticker to OnSelect.
func (c *Controller) Select(ticker string) {
	ticker = domain.NormalizeTicker(ticker)
	c.mu.Lock()
	c.seq++
	c.stopPendingLocked()
	c.query = ticker
	c.suggestions = nil
	c.visible = false
	v := c.viewLocked()
	c.mu.Unlock()
	c.events.Publish(v)

	if c.onSelect != nil && ticker != "" {
		c.onSelect(ticker)
	}
}

// Dismiss hides the list without cancelling an in-flight search. A result
// that arrives afterwards is stored but stays hidden until the next query.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	c.visible = false
	c.hiddenAt = c.seq
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

// Close stops the pending timer and cancels in-flight searches.
func (c *Controller) Close() {
	c.mu.Lock()
	c.seq++
	c.stopPendingLocked()
	c.mu.Unlock()
	c.cancel()
}

func (c *Controller) stopPendingLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

func (c *Controller) viewLocked() View {
	return View{
		Query:       c.query,
		Suggestions: append([]domain.SearchSuggestion(nil), c.suggestions...),
		Visible:     c.visible,
	}
}
