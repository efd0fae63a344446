// Package watchlist is the single source of truth for the signed-in user's
// watchlists. Every surface that shows watchlists (sidebar, picker,
// watchlists page) reads Store.View; every change goes through the backend
// and is followed by a full refresh.
package watchlist

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"stonklytics/internal/domain"
	"stonklytics/internal/identity"
	"stonklytics/internal/pubsub"
	"stonklytics/pkg/stonklytics"
)

// Messages shown to the user.
const (
	MsgLoginToView     = "Please log in to view your watchlists"
	MsgLoginToCreate   = "Please log in to create a watchlist"
	MsgLoginToAdd      = "Please log in to add stocks to your watchlist"
	MsgLoginToChange   = "Please log in to manage your watchlists"
	MsgNameRequired    = "Please enter a watchlist name"
	MsgTickerRequired  = "Please enter a ticker symbol"
	MsgChooseWatchlist = "Please choose a watchlist"
	MsgCreateFailed    = "Failed to create watchlist"
	MsgDeleteFailed    = "Failed to delete watchlist"
	MsgAddFailed       = "Failed to add to watchlist"
	MsgRemoveFailed    = "Failed to remove from watchlist"
	MsgLoadFailed      = "Failed to load watchlists"
	MsgBusy            = "Please wait for the current update to finish"
	MsgDeletePrompt    = "Are you sure you want to delete this watchlist? This will also delete all stocks in it."
)

// Backend is the subset of the API client the store uses.
type Backend interface {
	ListWatchlists(ctx context.Context) ([]domain.Watchlist, error)
	CreateWatchlist(ctx context.Context, name string) (*domain.Watchlist, error)
	DeleteWatchlist(ctx context.Context, id string) error
	AddMember(ctx context.Context, req stonklytics.AddMemberRequest) (*domain.WatchlistItem, error)
	RemoveMember(ctx context.Context, ticker string) error
	RemoveMemberFrom(ctx context.Context, watchlistID, ticker string) error
}

// Confirmer asks the user to confirm an irreversible action.
type Confirmer func(prompt string) bool

// Event types published by the store.
const (
	EventReplaced = "replaced"
	EventCleared  = "cleared"
	EventBusy     = "busy"
	EventIdle     = "idle"
)

// Event tells subscribers to re-read the store.
type Event struct {
	Type    string
	Version uint64
	Op      string // busy/idle only
}

// AmbiguousTickerError lists the watchlists that hold a ticker when a
// ticker-only removal cannot tell which one is meant.
type AmbiguousTickerError struct {
	Ticker     string
	Watchlists []domain.Watchlist
}

func (e *AmbiguousTickerError) Error() string {
	names := make([]string, len(e.Watchlists))
	for i, w := range e.Watchlists {
		names[i] = w.Name
	}
	return fmt.Sprintf("%s is in %d watchlists (%s)", e.Ticker, len(e.Watchlists), strings.Join(names, ", "))
}

// Store holds the watchlists of the current session user.
type Store struct {
	backend Backend
	session *identity.Session
	log     *slog.Logger

	mu           sync.RWMutex
	lists        []domain.Watchlist
	version      uint64
	epoch        uint64 // bumped on every user change
	userID       string
	refreshSeq   uint64
	committedSeq uint64
	busy         string

	events *pubsub.Broker[Event]
}

// NewStore creates an empty store.
func NewStore(backend Backend, session *identity.Session, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		backend: backend,
		session: session,
		log:     log,
		lists:   []domain.Watchlist{},
		events:  pubsub.NewBroker[Event](),
	}
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// View returns a deep copy of the watchlists in server order.
func (s *Store) View() []domain.Watchlist {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Watchlist, len(s.lists))
	for i := range s.lists {
		out[i] = s.lists[i].Clone()
	}
	return out
}

// Version increases on every committed change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Find returns the watchlist with id.
func (s *Store) Find(id string) (domain.Watchlist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.lists {
		if s.lists[i].ID == id {
			return s.lists[i].Clone(), true
		}
	}
	return domain.Watchlist{}, false
}

// Holders returns the watchlists that contain ticker.
func (s *Store) Holders(ticker string) []domain.Watchlist {
	ticker = domain.NormalizeTicker(ticker)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Watchlist
	for i := range s.lists {
		if s.lists[i].Has(ticker) {
			out = append(out, s.lists[i].Clone())
		}
	}
	return out
}

// Busy reports the mutation in progress, if any. Surfaces use it to
// disable their triggering controls.
func (s *Store) Busy() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy, s.busy != ""
}

// Subscribe returns a channel of change notifications.
func (s *Store) Subscribe(bufSize int) (int, <-chan Event) {
	return s.events.Subscribe(bufSize)
}

// Unsubscribe stops delivery to a subscriber.
func (s *Store) Unsubscribe(id int) {
	s.events.Unsubscribe(id)
}

// AllTickers returns the distinct tickers across lists, first occurrence
// order.
func AllTickers(lists []domain.Watchlist) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range lists {
		for _, it := range w.Items {
			if !seen[it.Ticker] {
				seen[it.Ticker] = true
				out = append(out, it.Ticker)
			}
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Session binding
// ---------------------------------------------------------------------------

// BindSession follows the session: state is cleared synchronously when the
// user signs out or changes, and refetched in the background for every
// signed-in transition. Close the returned subscription to unbind.
func (s *Store) BindSession(ctx context.Context) *identity.Subscription {
	sub := s.session.Subscribe(func(u *domain.User) {
		if u == nil {
			s.clear("")
			return
		}
		s.mu.RLock()
		changed := s.userID != u.ID
		s.mu.RUnlock()
		if changed {
			s.clear(u.ID)
		}
		go s.backgroundRefresh(ctx)
	})
	if u := s.session.Current(); u != nil {
		s.mu.Lock()
		s.userID = u.ID
		s.mu.Unlock()
		go s.backgroundRefresh(ctx)
	}
	return sub
}

func (s *Store) backgroundRefresh(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("refreshing watchlists", "error", err)
	}
}

func (s *Store) clear(userID string) {
	s.mu.Lock()
	s.epoch++
	s.userID = userID
	s.lists = []domain.Watchlist{}
	s.version++
	v := s.version
	s.mu.Unlock()
	s.events.Publish(Event{Type: EventCleared, Version: v})
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Refresh refetches the whole collection and replaces local state. A
// response is dropped if the session changed while it was in flight or a
// later refresh already committed.
func (s *Store) Refresh(ctx context.Context) error {
	if !s.session.SignedIn() {
		return domain.NewError(domain.KindUnauthenticated, MsgLoginToView)
	}

	s.mu.Lock()
	s.refreshSeq++
	seq := s.refreshSeq
	epoch := s.epoch
	s.mu.Unlock()

	lists, err := s.backend.ListWatchlists(ctx)
	if err != nil {
		return userError(err, MsgLoadFailed)
	}
	if lists == nil {
		lists = []domain.Watchlist{}
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		s.log.Debug("dropping watchlists from previous session")
		return domain.NewError(domain.KindUnauthenticated, MsgLoginToView)
	}
	if seq < s.committedSeq {
		s.mu.Unlock()
		return nil
	}
	s.committedSeq = seq
	s.lists = lists
	s.version++
	v := s.version
	s.mu.Unlock()

	s.events.Publish(Event{Type: EventReplaced, Version: v})
	return nil
}

// Create validates name, creates the watchlist, appends the server copy,
// and then refreshes.
func (s *Store) Create(ctx context.Context, name string) (*domain.Watchlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Validation(MsgNameRequired)
	}
	if !s.session.SignedIn() {
		return nil, domain.NewError(domain.KindUnauthenticated, MsgLoginToCreate)
	}
	release, err := s.acquire("create")
	if err != nil {
		return nil, err
	}
	defer release()

	s.mu.RLock()
	epoch := s.epoch
	s.mu.RUnlock()

	w, err := s.backend.CreateWatchlist(ctx, name)
	if err != nil {
		return nil, userError(err, MsgCreateFailed)
	}

	s.mu.Lock()
	if epoch == s.epoch {
		s.lists = append(s.lists, w.Clone())
		s.version++
	}
	v := s.version
	s.mu.Unlock()
	s.events.Publish(Event{Type: EventReplaced, Version: v})

	s.reconcile(ctx, "create")
	created := w.Clone()
	return &created, nil
}

// Delete removes a watchlist and its items. confirm must approve the
// deletion; otherwise nothing is sent.
func (s *Store) Delete(ctx context.Context, id string, confirm Confirmer) error {
	if !s.session.SignedIn() {
		return domain.NewError(domain.KindUnauthenticated, MsgLoginToChange)
	}
	if confirm == nil || !confirm(MsgDeletePrompt) {
		return domain.ErrNotConfirmed
	}
	release, err := s.acquire("delete")
	if err != nil {
		return err
	}
	defer release()

	if err := s.backend.DeleteWatchlist(ctx, id); err != nil {
		return userError(err, MsgDeleteFailed)
	}
	s.reconcile(ctx, "delete")
	return nil
}

// AddMember adds ticker to the watchlist with watchlistID. An empty ID is
// accepted only when it is unambiguous: with one watchlist that one is
// used, with none the backend picks its default.
func (s *Store) AddMember(ctx context.Context, ticker, name, watchlistID string) (*domain.WatchlistItem, error) {
	ticker = domain.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, domain.Validation(MsgTickerRequired)
	}
	if !s.session.SignedIn() {
		return nil, domain.NewError(domain.KindUnauthenticated, MsgLoginToAdd)
	}

	id := strings.TrimSpace(watchlistID)
	if id == "" {
		lists := s.View()
		switch {
		case len(lists) > 1:
			return nil, domain.Validation(MsgChooseWatchlist)
		case len(lists) == 1:
			id = lists[0].ID
		}
	}

	release, err := s.acquire("add")
	if err != nil {
		return nil, err
	}
	defer release()

	item, err := s.backend.AddMember(ctx, stonklytics.AddMemberRequest{
		Ticker:      ticker,
		Name:        strings.TrimSpace(name),
		WatchlistID: id,
	})
	if err != nil {
		return nil, userError(err, MsgAddFailed)
	}
	s.reconcile(ctx, "add")
	return item, nil
}

// RemoveMember removes ticker using the ticker-only endpoint. When the
// ticker sits in more than one watchlist the call is refused with a
// validation error wrapping *AmbiguousTickerError; use RemoveMemberFrom.
func (s *Store) RemoveMember(ctx context.Context, ticker string) error {
	ticker = domain.NormalizeTicker(ticker)
	if ticker == "" {
		return domain.Validation(MsgTickerRequired)
	}
	if !s.session.SignedIn() {
		return domain.NewError(domain.KindUnauthenticated, MsgLoginToChange)
	}
	if holders := s.Holders(ticker); len(holders) > 1 {
		amb := &AmbiguousTickerError{Ticker: ticker, Watchlists: holders}
		return domain.WrapError(domain.KindValidation, amb.Error()+"; choose which watchlist to remove it from", amb)
	}

	release, err := s.acquire("remove")
	if err != nil {
		return err
	}
	defer release()

	if err := s.backend.RemoveMember(ctx, ticker); err != nil {
		return userError(err, MsgRemoveFailed)
	}
	s.reconcile(ctx, "remove")
	return nil
}

// RemoveMemberFrom removes ticker from one watchlist.
func (s *Store) RemoveMemberFrom(ctx context.Context, watchlistID, ticker string) error {
	ticker = domain.NormalizeTicker(ticker)
	if ticker == "" {
		return domain.Validation(MsgTickerRequired)
	}
	if strings.TrimSpace(watchlistID) == "" {
		return domain.Validation(MsgChooseWatchlist)
	}
	if !s.session.SignedIn() {
		return domain.NewError(domain.KindUnauthenticated, MsgLoginToChange)
	}

	release, err := s.acquire("remove")
	if err != nil {
		return err
	}
	defer release()

	if err := s.backend.RemoveMemberFrom(ctx, watchlistID, ticker); err != nil {
		return userError(err, MsgRemoveFailed)
	}
	s.reconcile(ctx, "remove")
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// acquire admits one mutation at a time.
func (s *Store) acquire(op string) (func(), error) {
	s.mu.Lock()
	if s.busy != "" {
		s.mu.Unlock()
		return nil, domain.NewError(domain.KindBusy, MsgBusy)
	}
	s.busy = op
	v := s.version
	s.mu.Unlock()
	s.events.Publish(Event{Type: EventBusy, Version: v, Op: op})

	return func() {
		s.mu.Lock()
		s.busy = ""
		v := s.version
		s.mu.Unlock()
		s.events.Publish(Event{Type: EventIdle, Version: v, Op: op})
	}, nil
}

// reconcile refreshes after a successful mutation. The mutation already
// succeeded, so a refresh failure is logged rather than returned.
func (s *Store) reconcile(ctx context.Context, op string) {
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("refreshing watchlists after "+op, "error", err)
	}
}

// userError keeps the kind of err and guarantees a displayable message.
func userError(err error, fallback string) error {
	kind := domain.KindOf(err)
	if kind == domain.KindUnknown {
		kind = domain.KindUpstream
	}
	return domain.WrapError(kind, domain.UserMessage(err, fallback), err)
}
