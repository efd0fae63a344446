package watchlist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stonklytics/internal/domain"
	"stonklytics/internal/pubsub"
)

// PriceStatus is the state of one cache entry.
type PriceStatus int

const (
	PriceLoading PriceStatus = iota
	PriceOK
	PriceFailed
)

// PriceEntry is the cached price of one ticker.
type PriceEntry struct {
	Ticker    string
	Name      string
	Price     float64
	Status    PriceStatus
	UpdatedAt time.Time
}

// Display renders the price for a list row.
func (e PriceEntry) Display() string {
	switch e.Status {
	case PriceOK:
		return fmt.Sprintf("$%.2f", e.Price)
	case PriceLoading:
		return "..."
	default:
		return "N/A"
	}
}

// PriceFetcher is the backend operation used to price a ticker.
type PriceFetcher interface {
	GetSnapshot(ctx context.Context, ticker string) (*domain.StockSnapshot, error)
}

// PriceCache maps ticker to its latest price. Each ticker is fetched and
// committed independently; the newest fetch per ticker wins.
type PriceCache struct {
	fetcher     PriceFetcher
	concurrency int
	log         *slog.Logger

	mu      sync.RWMutex
	entries map[string]PriceEntry
	seqs    map[string]uint64

	events *pubsub.Broker[string]
}

// NewPriceCache creates a cache that runs at most concurrency fetches at
// once (<= 0 means unbounded).
func NewPriceCache(fetcher PriceFetcher, concurrency int, log *slog.Logger) *PriceCache {
	if log == nil {
		log = slog.Default()
	}
	return &PriceCache{
		fetcher:     fetcher,
		concurrency: concurrency,
		log:         log,
		entries:     make(map[string]PriceEntry),
		seqs:        make(map[string]uint64),
		events:      pubsub.NewBroker[string](),
	}
}

// Populate fetches every distinct ticker in parallel and blocks until all
// are done. A failed ticker is marked PriceFailed; the others are not
// affected.
func (p *PriceCache) Populate(ctx context.Context, tickers []string) {
	type job struct {
		ticker string
		seq    uint64
	}
	var jobs []job
	seen := make(map[string]bool)

	p.mu.Lock()
	for _, t := range tickers {
		t = domain.NormalizeTicker(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		p.seqs[t]++
		e := p.entries[t]
		e.Ticker = t
		if e.Status != PriceOK {
			e.Status = PriceLoading
		}
		p.entries[t] = e
		jobs = append(jobs, job{ticker: t, seq: p.seqs[t]})
	}
	p.mu.Unlock()

	var g errgroup.Group
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			snap, err := p.fetcher.GetSnapshot(ctx, j.ticker)
			p.commit(j.ticker, j.seq, snap, err)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *PriceCache) commit(ticker string, seq uint64, snap *domain.StockSnapshot, err error) {
	p.mu.Lock()
	if p.seqs[ticker] != seq {
		p.mu.Unlock()
		return
	}
	e := PriceEntry{Ticker: ticker, UpdatedAt: time.Now()}
	if err != nil || snap == nil {
		e.Status = PriceFailed
		e.Name = p.entries[ticker].Name
	} else {
		e.Status = PriceOK
		e.Price = snap.CurrentPrice
		e.Name = snap.Name
	}
	p.entries[ticker] = e
	p.mu.Unlock()

	if err != nil {
		p.log.Debug("price fetch failed", "ticker", ticker, "error", err)
	}
	p.events.Publish(ticker)
}

// Get returns the entry for ticker.
func (p *PriceCache) Get(ticker string) (PriceEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[domain.NormalizeTicker(ticker)]
	return e, ok
}

// Display renders the price for ticker; unknown tickers show "N/A".
func (p *PriceCache) Display(ticker string) string {
	e, ok := p.Get(ticker)
	if !ok {
		return "N/A"
	}
	return e.Display()
}

// Reset drops every entry and invalidates in-flight fetches.
func (p *PriceCache) Reset() {
	p.mu.Lock()
	for t := range p.seqs {
		p.seqs[t]++
	}
	p.entries = make(map[string]PriceEntry)
	p.mu.Unlock()
}

// Subscribe returns a channel that receives each ticker as it commits.
func (p *PriceCache) Subscribe(bufSize int) (int, <-chan string) {
	return p.events.Subscribe(bufSize)
}

// Unsubscribe stops delivery to a subscriber.
func (p *PriceCache) Unsubscribe(id int) {
	p.events.Unsubscribe(id)
}
