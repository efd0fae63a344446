package watchlist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stonklytics/internal/domain"
	"stonklytics/internal/identity"
	"stonklytics/pkg/stonklytics"
)

// fakeBackend is an in-memory backend with the same uniqueness and default
// watchlist rules as the real one.
type fakeBackend struct {
	mu     sync.Mutex
	lists  map[string][]domain.Watchlist // uid -> watchlists
	user   string
	nextID int
	calls  map[string]int
	errs   map[string]error
	// gates, when set, block the named call until closed.
	gates map[string]chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		lists: make(map[string][]domain.Watchlist),
		user:  "u1",
		calls: make(map[string]int),
		errs:  make(map[string]error),
		gates: make(map[string]chan struct{}),
	}
}

func (f *fakeBackend) enter(op string) error {
	f.mu.Lock()
	f.calls[op]++
	gate := f.gates[op]
	err := f.errs[op]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeBackend) setUser(uid string) {
	f.mu.Lock()
	f.user = uid
	f.mu.Unlock()
}

func (f *fakeBackend) seed(uid string, lists ...domain.Watchlist) {
	f.mu.Lock()
	f.lists[uid] = append(f.lists[uid], lists...)
	f.mu.Unlock()
}

func (f *fakeBackend) ListWatchlists(context.Context) ([]domain.Watchlist, error) {
	f.mu.Lock()
	uid := f.user
	f.mu.Unlock()
	if err := f.enter("list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Watchlist, len(f.lists[uid]))
	for i := range f.lists[uid] {
		out[i] = f.lists[uid][i].Clone()
	}
	return out, nil
}

func (f *fakeBackend) CreateWatchlist(_ context.Context, name string) (*domain.Watchlist, error) {
	if err := f.enter("create"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	w := domain.Watchlist{ID: fmt.Sprintf("w%d", f.nextID), Name: name, CreatedAt: time.Now(), Items: []domain.WatchlistItem{}}
	f.lists[f.user] = append(f.lists[f.user], w)
	return &w, nil
}

func (f *fakeBackend) DeleteWatchlist(_ context.Context, id string) error {
	if err := f.enter("delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lists := f.lists[f.user]
	for i := range lists {
		if lists[i].ID == id {
			f.lists[f.user] = append(lists[:i:i], lists[i+1:]...)
			return nil
		}
	}
	return domain.NewError(domain.KindNotFound, "Watchlist not found")
}

func (f *fakeBackend) AddMember(_ context.Context, req stonklytics.AddMemberRequest) (*domain.WatchlistItem, error) {
	if err := f.enter("add"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lists := f.lists[f.user]
	idx := -1
	for i := range lists {
		if lists[i].ID == req.WatchlistID {
			idx = i
		}
	}
	if req.WatchlistID == "" {
		for i := range lists {
			if lists[i].Name == "My Watchlist" {
				idx = i
			}
		}
		if idx < 0 {
			f.nextID++
			lists = append(lists, domain.Watchlist{ID: fmt.Sprintf("w%d", f.nextID), Name: "My Watchlist"})
			idx = len(lists) - 1
		}
	}
	if idx < 0 {
		return nil, domain.NewError(domain.KindNotFound, "Watchlist not found")
	}
	if lists[idx].Has(req.Ticker) {
		f.lists[f.user] = lists
		return nil, domain.NewError(domain.KindConflict, "Stock already in watchlist")
	}
	item := domain.WatchlistItem{Ticker: req.Ticker, Name: req.Name, AddedAt: time.Now()}
	lists[idx].Items = append(lists[idx].Items, item)
	f.lists[f.user] = lists
	return &item, nil
}

func (f *fakeBackend) RemoveMember(ctx context.Context, ticker string) error {
	if err := f.enter("remove"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.lists[f.user] {
		if w.Has(ticker) {
			f.removeLocked(i, ticker)
			return nil
		}
	}
	return domain.NewError(domain.KindNotFound, "Stock not in watchlist")
}

func (f *fakeBackend) RemoveMemberFrom(_ context.Context, watchlistID, ticker string) error {
	if err := f.enter("remove_from"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.lists[f.user] {
		if w.ID == watchlistID && w.Has(ticker) {
			f.removeLocked(i, ticker)
			return nil
		}
	}
	return domain.NewError(domain.KindNotFound, "Stock not in watchlist")
}

func (f *fakeBackend) removeLocked(i int, ticker string) {
	items := f.lists[f.user][i].Items
	out := items[:0:0]
	for _, it := range items {
		if it.Ticker != ticker {
			out = append(out, it)
		}
	}
	f.lists[f.user][i].Items = out
}

func newTestStore(fb *fakeBackend, signedIn bool) (*Store, *identity.Session) {
	session := identity.NewSession(nil)
	if signedIn {
		session.SignIn(domain.User{ID: "u1", Email: "u1@example.com"}, "tok")
	}
	return NewStore(fb, session, nil), session
}

func tech(tickers ...string) domain.Watchlist {
	w := domain.Watchlist{ID: "tech-id", Name: "Tech"}
	for _, t := range tickers {
		w.Items = append(w.Items, domain.WatchlistItem{Ticker: t})
	}
	return w
}
