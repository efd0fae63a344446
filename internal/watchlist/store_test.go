package watchlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stonklytics/internal/domain"
)

func yes(string) bool { return true }
func no(string) bool  { return false }

func TestUnauthenticatedShortCircuit(t *testing.T) {
	fb := newFakeBackend()
	s, _ := newTestStore(fb, false)
	ctx := context.Background()

	checks := []struct {
		name string
		err  error
	}{
		{"refresh", s.Refresh(ctx)},
		{"create", func() error { _, err := s.Create(ctx, "Tech"); return err }()},
		{"delete", s.Delete(ctx, "w1", yes)},
		{"add", func() error { _, err := s.AddMember(ctx, "AAPL", "Apple", "w1"); return err }()},
		{"remove", s.RemoveMember(ctx, "AAPL")},
		{"remove from", s.RemoveMemberFrom(ctx, "w1", "AAPL")},
	}
	for _, c := range checks {
		assert.Truef(t, errors.Is(c.err, domain.ErrUnauthenticated), "%s: err = %v", c.name, c.err)
	}
	assert.Zero(t, fb.total(), "no network calls while signed out")
}

func TestRefreshReplacesWholesaleInServerOrder(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("u1",
		domain.Watchlist{ID: "b", Name: "Energy", Items: []domain.WatchlistItem{{Ticker: "XOM"}, {Ticker: "CVX"}}},
		domain.Watchlist{ID: "a", Name: "Tech", Items: []domain.WatchlistItem{{Ticker: "NVDA"}, {Ticker: "AAPL"}}},
	)
	s, _ := newTestStore(fb, true)

	require.NoError(t, s.Refresh(context.Background()))
	lists := s.View()
	require.Len(t, lists, 2)
	assert.Equal(t, "b", lists[0].ID)
	assert.Equal(t, []string{"XOM", "CVX"}, lists[0].Tickers())
	assert.Equal(t, []string{"NVDA", "AAPL"}, lists[1].Tickers())

	fb.mu.Lock()
	fb.lists["u1"] = fb.lists["u1"][1:]
	fb.mu.Unlock()
	require.NoError(t, s.Refresh(context.Background()))
	assert.Len(t, s.View(), 1)
}

func TestRefreshFailureKeepsState(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("u1", tech("AAPL"))
	s, _ := newTestStore(fb, true)
	require.NoError(t, s.Refresh(context.Background()))

	fb.errs["list"] = domain.NewError(domain.KindUpstream, "")
	err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, MsgLoadFailed, err.Error())
	assert.Len(t, s.View(), 1)
}

func TestCreateRejectsBlankName(t *testing.T) {
	fb := newFakeBackend()
	s, _ := newTestStore(fb, true)

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := s.Create(context.Background(), name)
		assert.True(t, errors.Is(err, domain.ErrValidation))
		assert.Equal(t, MsgNameRequired, err.Error())
	}
	assert.Zero(t, fb.total())
}

func TestCreateAppendsAndRefreshes(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("u1", tech("AAPL"))
	s, _ := newTestStore(fb, true)
	require.NoError(t, s.Refresh(context.Background()))

	w, err := s.Create(context.Background(), "  Growth ")
	require.NoError(t, err)
	assert.Equal(t, "Growth", w.Name)

	lists := s.View()
	require.Len(t, lists, 2)
	assert.Equal(t, "Growth", lists[1].Name)
	assert.Equal(t, 1, fb.count("create"))
	assert.Equal(t, 2, fb.count("list"))
}

func TestCreateFailureSurfacesMessage(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("u1", tech())
	fb.errs["create"] = domain.NewError(domain.KindValidation, "name is required")
	s, _ := newTestStore(fb, true)
	require.NoError(t, s.Refresh(context.Background()))
	before := s.Version()

	_, err := s.Create(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, "name is required", err.Error())
	assert.Equal(t, before, s.Version(), "state unchanged")
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("u1", tech("AAPL"))
	s, _ := newTestStore(fb, true)
	require.NoError(t, s.Refresh(context.Background()))

	assert.ErrorIs(t, s.Delete(context.Background(), "tech-id", nil), domain.ErrNotConfirmed)
	assert.ErrorIs(t, s.Delete(context.Background(), "tech-id", no), domain.ErrNotConfirmed)
	assert.Zero(t, fb.count("delete"))

	var prompt string
	require.NoError(t, s.Delete(context.Background(), "tech-id", func(p string) bool { prompt = p; return true }))
	assert.Equal(t, MsgDeletePrompt, prompt)
	assert.Empty(t, s.View())
}

func TestDeleteFailureLeavesState(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("u1", tech("AAPL"))
	s, _ := newTestStore(fb, true)
	require.NoError(t, s.Refresh(context.Background()))

	err := s.Delete(context.Background(), "missing", yes)
	require.Error(t, err)
	assert.Equal(t, "Watchlist not found", err.Error())
	assert.Len(t, s.View(), 1)
}

func TestAddMemberRequiresTargetWhenAmbiguous(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("u1", tech(), domain.Watchlist{ID: "energy-id", Name: "Energy"})
	s, _ := newTestStore(fb, true)
	require.NoError(t, s.Refresh(context.Background()))
	calls := fb.total()

	_, err := s.AddMember(context.Background(), "MSFT", "Microsoft", "")
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, MsgChooseWatchlist, err.Error())
	assert.Equal(t, calls, fb.total())
}

func TestAddMemberSingleWatchlistIsImplicitTarget(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("u1", tech("AAPL"))
	s, _ := newTestStore(fb, true)
	require.NoError(t, s.Refresh(context.Background()))

	_, err := s.AddMember(context.Background(), "msft", "Microsoft", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, s.View()[0].Tickers())
}

func TestAddMemberDuplicateSurfacesConflict(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("u1", tech("AAPL"))
	s, _ := newTestStore(fb, true)
	require.NoError(t, s.Refresh(context.Background()))

	_, err := s.AddMember(context.Background(), "MSFT", "Microsoft", "tech-id")
	require.NoError(t, err)
	_, err = s.AddMember(context.Background(), "MSFT", "Microsoft", "tech-id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.Equal(t, "Stock already in watchlist", err.Error())

	count := 0
	for _, it := range s.View()[0].Items {
		if it.Ticker == "MSFT" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, 2, fb.count("add"), "no retry")
}

func TestRemoveMemberAmbiguousRequiresDisambiguation(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("u1", tech("AAPL", "MSFT"), domain.Watchlist{ID: "core-id", Name: "Core", Items: []domain.WatchlistItem{{Ticker: "AAPL"}}})
	s, _ := newTestStore(fb, true)
	require.NoError(t, s.Refresh(context.Background()))

	err := s.RemoveMember(context.Background(), "aapl")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	var amb *AmbiguousTickerError
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, "AAPL", amb.Ticker)
	assert.Len(t, amb.Watchlists, 2)
	assert.Zero(t, fb.count("remove"))

	require.NoError(t, s.RemoveMemberFrom(context.Background(), "core-id", "AAPL"))
	lists := s.View()
	assert.Equal(t, []string{"AAPL", "MSFT"}, lists[0].Tickers())
	assert.Empty(t, lists[1].Tickers())

	// Now unambiguous: the ticker-only endpoint is used.
	require.NoError(t, s.RemoveMember(context.Background(), "AAPL"))
	assert.Equal(t, []string{"MSFT"}, s.View()[0].Tickers())
	assert.Equal(t, 1, fb.count("remove"))
}

func TestRemoveMemberNotFoundSurfacesBackendMessage(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("u1", tech("AAPL"))
	s, _ := newTestStore(fb, true)
	require.NoError(t, s.Refresh(context.Background()))

	err := s.RemoveMember(context.Background(), "TSLA")
	require.Error(t, err)
	assert.Equal(t, "Stock not in watchlist", err.Error())
}

func TestMutationsAreNotPipelined(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("u1", tech("AAPL"))
	gate := make(chan struct{})
	fb.gates["create"] = gate
	s, _ := newTestStore(fb, true)
	require.NoError(t, s.Refresh(context.Background()))

	done := make(chan error, 1)
	go func() {
		_, err := s.Create(context.Background(), "Growth")
		done <- err
	}()
	require.Eventually(t, func() bool { _, busy := s.Busy(); return busy }, time.Second, time.Millisecond)

	op, _ := s.Busy()
	assert.Equal(t, "create", op)
	_, err := s.AddMember(context.Background(), "MSFT", "", "tech-id")
	assert.True(t, errors.Is(err, domain.ErrBusy))
	assert.Zero(t, fb.count("add"))

	close(gate)
	require.NoError(t, <-done)
	_, busy := s.Busy()
	assert.False(t, busy)
}

func TestSessionBoundaryClearing(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("u1", tech("AAPL"))
	fb.seed("u2", domain.Watchlist{ID: "other", Name: "Other", Items: []domain.WatchlistItem{{Ticker: "TSLA"}}})
	s, session := newTestStore(fb, true)

	sub := s.BindSession(context.Background())
	defer sub.Close()
	require.Eventually(t, func() bool { return len(s.View()) == 1 }, time.Second, time.Millisecond)

	session.SignOut()
	assert.Empty(t, s.View(), "cleared synchronously on sign-out")

	gate := make(chan struct{})
	fb.mu.Lock()
	fb.gates["list"] = gate
	fb.mu.Unlock()
	fb.setUser("u2")
	session.SignIn(domain.User{ID: "u2"}, "tok-2")
	assert.Empty(t, s.View(), "nothing from the previous user before the new fetch lands")

	close(gate)
	require.Eventually(t, func() bool {
		lists := s.View()
		return len(lists) == 1 && lists[0].ID == "other"
	}, time.Second, time.Millisecond)
}

func TestRefreshFromPreviousSessionIsDropped(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("u1", tech("AAPL"))
	gate := make(chan struct{})
	fb.gates["list"] = gate
	s, session := newTestStore(fb, true)
	sub := s.BindSession(context.Background())
	defer sub.Close()

	require.Eventually(t, func() bool { return fb.count("list") == 1 }, time.Second, time.Millisecond)
	session.SignOut()
	close(gate)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, s.View())
}

func TestSurfacesReadIdenticalDataAfterMutations(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("u1", tech("AAPL"))
	s, _ := newTestStore(fb, true)
	sel := NewSelector(s)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	sidebar := func() []domain.Watchlist { return s.View() }
	dropdown := sel.Options

	steps := []func() error{
		func() error { _, err := s.Create(ctx, "Growth"); return err },
		func() error { _, err := s.AddMember(ctx, "MSFT", "Microsoft", "tech-id"); return err },
		func() error { return s.RemoveMember(ctx, "AAPL") },
		func() error { return s.Delete(ctx, "w1", yes) },
	}
	for i, step := range steps {
		require.NoErrorf(t, step(), "step %d", i)

		fresh, err := fb.ListWatchlists(ctx)
		require.NoError(t, err)
		assert.Equalf(t, sidebar(), dropdown(), "step %d: surfaces diverge", i)
		assert.Equalf(t, fresh, sidebar(), "step %d: store diverges from backend", i)
	}
}

func TestViewIsACopy(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("u1", tech("AAPL"))
	s, _ := newTestStore(fb, true)
	require.NoError(t, s.Refresh(context.Background()))

	v := s.View()
	v[0].Items[0].Ticker = "ZZZ"
	v[0].Name = "changed"
	assert.Equal(t, "AAPL", s.View()[0].Items[0].Ticker)
	assert.Equal(t, "Tech", s.View()[0].Name)
}

func TestAllTickers(t *testing.T) {
	lists := []domain.Watchlist{tech("AAPL", "MSFT"), {Items: []domain.WatchlistItem{{Ticker: "MSFT"}, {Ticker: "XOM"}}}}
	assert.Equal(t, []string{"AAPL", "MSFT", "XOM"}, AllTickers(lists))
}

func TestExampleScenario(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("u1", tech("AAPL"))
	s, _ := newTestStore(fb, true)
	sel := NewSelector(s)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	require.NoError(t, sel.Open("MSFT"))
	opts := sel.Options()
	require.Len(t, opts, 1)
	assert.Equal(t, "Tech", opts[0].Name)

	_, err := sel.Choose(ctx, "MSFT", opts[0].ID, "MSFT", "Microsoft")
	require.NoError(t, err)
	assert.False(t, sel.IsOpen("MSFT"))
	assert.Equal(t, []string{"AAPL", "MSFT"}, s.View()[0].Tickers())
	assert.Equal(t, s.View(), sel.Options())
}
