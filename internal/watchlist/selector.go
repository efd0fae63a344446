package watchlist

import (
	"context"
	"sync"

	"stonklytics/internal/domain"
)

// Guidance shown instead of opening the picker.
const (
	MsgLoginToPick = "Please log in to add stocks to your watchlist"
	MsgCreateFirst = "Please create a watchlist first"
)

// errNoKey rejects Open for the empty key, which stands for "closed".
var errNoKey = domain.Validation("selector key is required")

// Selector is the "add to which watchlist" picker. Many snapshot cards may
// carry one, identified by key, but a single shared flag means at most one
// is open at a time.
type Selector struct {
	store *Store

	mu      sync.Mutex
	openKey string
}

// NewSelector creates a closed selector over store.
func NewSelector(store *Store) *Selector {
	return &Selector{store: store}
}

// Open opens the picker for key, closing any other instance. It refuses
// with a guidance error when nobody is signed in or no watchlist exists.
// The empty key is rejected and leaves the selector unchanged.
func (s *Selector) Open(key string) error {
	if key == "" {
		return errNoKey
	}
	if !s.store.session.SignedIn() {
		return domain.NewError(domain.KindUnauthenticated, MsgLoginToPick)
	}
	if len(s.store.View()) == 0 {
		return domain.Validation(MsgCreateFirst)
	}
	s.mu.Lock()
	s.openKey = key
	s.mu.Unlock()
	return nil
}

// Toggle closes the picker for key if it is open, otherwise opens it.
func (s *Selector) Toggle(key string) error {
	s.mu.Lock()
	if s.openKey == key && key != "" {
		s.openKey = ""
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.Open(key)
}

// IsOpen reports whether the instance for key is open.
func (s *Selector) IsOpen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openKey != "" && s.openKey == key
}

// OpenKey returns the open instance, or "".
func (s *Selector) OpenKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openKey
}

// Dismiss closes whichever instance is open (outside click, escape).
func (s *Selector) Dismiss() {
	s.mu.Lock()
	s.openKey = ""
	s.mu.Unlock()
}

// Options lists the destinations, read from the store.
func (s *Selector) Options() []domain.Watchlist {
	return s.store.View()
}

// Choose adds ticker to the chosen watchlist and closes the picker
// whatever the outcome. The caller reports the result.
func (s *Selector) Choose(ctx context.Context, key, watchlistID, ticker, name string) (*domain.WatchlistItem, error) {
	defer s.closeIf(key)
	return s.store.AddMember(ctx, ticker, name, watchlistID)
}

func (s *Selector) closeIf(key string) {
	s.mu.Lock()
	if s.openKey == key {
		s.openKey = ""
	}
	s.mu.Unlock()
}
