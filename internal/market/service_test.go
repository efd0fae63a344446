package market

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"stonklytics/internal/domain"
	"stonklytics/internal/store"
)

// flakyProvider wraps a FixtureProvider, counting calls and failing on demand.
type flakyProvider struct {
	*FixtureProvider

	mu    sync.Mutex
	calls map[string]int
	fail  error
}

func newFlaky(t *testing.T) *flakyProvider {
	t.Helper()
	fp, err := NewFixtureProvider("")
	if err != nil {
		t.Fatalf("NewFixtureProvider: %v", err)
	}
	return &flakyProvider{FixtureProvider: fp, calls: make(map[string]int)}
}

func (f *flakyProvider) hit(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.fail
}

func (f *flakyProvider) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *flakyProvider) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *flakyProvider) Snapshot(ctx context.Context, ticker string) (*domain.StockSnapshot, error) {
	if err := f.hit("snapshot"); err != nil {
		return nil, err
	}
	return f.FixtureProvider.Snapshot(ctx, ticker)
}

func (f *flakyProvider) Historical(ctx context.Context, ticker string, from, to time.Time) ([]domain.PricePoint, error) {
	if err := f.hit("historical"); err != nil {
		return nil, err
	}
	return f.FixtureProvider.Historical(ctx, ticker, from, to)
}

func (f *flakyProvider) News(ctx context.Context, ticker string, limit int) ([]domain.NewsArticle, error) {
	if err := f.hit("news"); err != nil {
		return nil, err
	}
	return f.FixtureProvider.News(ctx, ticker, limit)
}

func (f *flakyProvider) MarketNews(ctx context.Context, limit int) ([]domain.MarketNewsItem, error) {
	if err := f.hit("market"); err != nil {
		return nil, err
	}
	return f.FixtureProvider.MarketNews(ctx, limit)
}

var errUpstream = errors.New("upstream down")

func TestServiceSnapshotCached(t *testing.T) {
	p := newFlaky(t)
	s := NewService(p, ServiceOptions{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		snap, err := s.Snapshot(ctx, "aapl")
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if snap.Ticker != "AAPL" {
			t.Errorf("Ticker = %s", snap.Ticker)
		}
	}
	if n := p.count("snapshot"); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}
}

func TestServiceSnapshotUnknown(t *testing.T) {
	s := NewService(newFlaky(t), ServiceOptions{})
	if _, err := s.Snapshot(context.Background(), "ZZZZ"); !errors.Is(err, ErrUnknownTicker) {
		t.Errorf("err = %v, want ErrUnknownTicker", err)
	}
}

func TestServiceHistoricalArchiveFallback(t *testing.T) {
	p := newFlaky(t)
	s := NewService(p, ServiceOptions{Archive: store.NewArchive(t.TempDir())})
	ctx := context.Background()
	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)

	fresh, err := s.Historical(ctx, "MSFT", from, to)
	if err != nil || len(fresh) != 5 {
		t.Fatalf("Historical = %d bars, %v", len(fresh), err)
	}

	p.setFail(errUpstream)
	archived, err := s.Historical(ctx, "MSFT", from, to)
	if err != nil {
		t.Fatalf("Historical with provider down: %v", err)
	}
	if len(archived) != 5 || archived[4] != fresh[4] {
		t.Errorf("archived bars differ: %+v", archived)
	}

	if _, err := s.Historical(ctx, "AAPL", from, to); !errors.Is(err, errUpstream) {
		t.Errorf("no archive for AAPL: err = %v, want upstream error", err)
	}
}

func TestServiceNewsArchiveFallback(t *testing.T) {
	p := newFlaky(t)
	s := NewService(p, ServiceOptions{Archive: store.NewArchive(t.TempDir())})
	ctx := context.Background()

	if _, err := s.News(ctx, "AAPL", 10); err != nil {
		t.Fatalf("News: %v", err)
	}
	p.setFail(errUpstream)
	news, err := s.News(ctx, "AAPL", 10)
	if err != nil || len(news) != 2 {
		t.Errorf("archived news = %+v, %v", news, err)
	}
}

func TestServiceMarketNews(t *testing.T) {
	p := newFlaky(t)
	s := NewService(p, ServiceOptions{Archive: store.NewArchive(t.TempDir())})
	s.now = func() time.Time { return time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	mn, err := s.MarketNews(ctx)
	if err != nil {
		t.Fatalf("MarketNews: %v", err)
	}
	if mn.GeneratedAt != "May 01, 2024" || mn.Source != "fixtures" || len(mn.Items) != 5 {
		t.Errorf("MarketNews = %+v", mn)
	}

	p.setFail(errUpstream)
	mn, err = s.MarketNews(ctx)
	if err != nil || mn.Source != "archive" || len(mn.Items) != 5 {
		t.Errorf("archived market news = %+v, %v", mn, err)
	}
}

func TestServiceSummaryCachedAndNeverFails(t *testing.T) {
	p := newFlaky(t)
	s := NewService(p, ServiceOptions{})
	ctx := context.Background()

	first := s.Summary(ctx, "AAPL")
	if first.Source != "fresh" || !strings.Contains(first.Summary, "Apple Inc.") {
		t.Errorf("first summary = %+v", first)
	}
	second := s.Summary(ctx, "aapl")
	if second.Source != "cache" || second.Summary != first.Summary {
		t.Errorf("second summary = %+v", second)
	}

	p.setFail(errUpstream)
	down := s.Summary(ctx, "NVDA")
	if !strings.HasPrefix(down.Summary, "• NVDA: no detailed context available.") {
		t.Errorf("summary with provider down = %q", down.Summary)
	}
	p.setFail(nil)
	if again := s.Summary(ctx, "NVDA"); again.Source != "fresh" {
		t.Errorf("degraded summary should not be cached, got source %q", again.Source)
	}
}
