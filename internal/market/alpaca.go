package market

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stonklytics/internal/config"
	"stonklytics/internal/domain"
	"stonklytics/internal/util"
)

var _ Provider = (*AlpacaProvider)(nil)

// assetTTL is how long the tradable asset list is reused for search.
const assetTTL = 12 * time.Hour

// AlpacaProvider serves market data from the Alpaca trading and market-data
// APIs. Alpaca has no fundamentals, so Financials is always empty.
type AlpacaProvider struct {
	trading *alpaca.Client
	data    *marketdata.Client
	feed    marketdata.Feed
	limiter *util.RateLimiter
	log     *slog.Logger

	mu       sync.Mutex
	assets   []listing
	byTicker map[string]listing
	loadedAt time.Time
}

// NewAlpacaProvider creates a provider from the alpaca config section.
func NewAlpacaProvider(cfg config.Alpaca, limiter *util.RateLimiter, log *slog.Logger) *AlpacaProvider {
	if log == nil {
		log = slog.Default()
	}
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	return &AlpacaProvider{
		trading: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.BaseURL,
		}),
		data:    marketdata.NewClient(opts),
		feed:    marketdata.IEX,
		limiter: limiter,
		log:     log.With("provider", "alpaca"),
	}
}

func (p *AlpacaProvider) Name() string { return "alpaca" }

// listings returns the cached active US equities, reloading after assetTTL.
func (p *AlpacaProvider) listings(ctx context.Context) ([]listing, map[string]listing, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.assets != nil && time.Since(p.loadedAt) < assetTTL {
		return p.assets, p.byTicker, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	assets, err := p.trading.GetAssets(alpaca.GetAssetsRequest{
		Status:     "active",
		AssetClass: "us_equity",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("GetAssets: %w", err)
	}

	all := make([]listing, 0, len(assets))
	byTicker := make(map[string]listing, len(assets))
	for _, a := range assets {
		if !a.Tradable {
			continue
		}
		l := listing{Ticker: strings.ToUpper(a.Symbol), Name: a.Name, Exchange: a.Exchange}
		all = append(all, l)
		byTicker[l.Ticker] = l
	}
	p.assets, p.byTicker, p.loadedAt = all, byTicker, time.Now()
	p.log.Info("loaded asset list", "count", len(all))
	return all, byTicker, nil
}

func (p *AlpacaProvider) Search(ctx context.Context, query string, limit int) ([]domain.SearchSuggestion, error) {
	all, _, err := p.listings(ctx)
	if err != nil {
		return nil, err
	}
	return rankListings(all, query, limit), nil
}

func (p *AlpacaProvider) lookup(ctx context.Context, ticker string) (listing, error) {
	_, byTicker, err := p.listings(ctx)
	if err != nil {
		return listing{}, err
	}
	l, ok := byTicker[domain.NormalizeTicker(ticker)]
	if !ok {
		return listing{}, ErrUnknownTicker
	}
	return l, nil
}

func (p *AlpacaProvider) Snapshot(ctx context.Context, ticker string) (*domain.StockSnapshot, error) {
	l, err := p.lookup(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	snap, err := p.data.GetSnapshot(l.Ticker, marketdata.GetSnapshotRequest{Feed: p.feed})
	if err != nil {
		return nil, fmt.Errorf("GetSnapshot %s: %w", l.Ticker, err)
	}
	if snap == nil {
		return nil, ErrUnknownTicker
	}

	out := &domain.StockSnapshot{
		Ticker:      l.Ticker,
		Name:        l.Name,
		Source:      p.Name(),
		LastUpdated: time.Now().UTC(),
	}
	if b := snap.DailyBar; b != nil {
		out.OpenPrice, out.HighPrice, out.LowPrice = b.Open, b.High, b.Low
		out.CurrentPrice = b.Close
		out.Volume = b.Volume
	}
	if b := snap.PrevDailyBar; b != nil {
		out.ClosePrice = b.Close
	}
	if t := snap.LatestTrade; t != nil && t.Price > 0 {
		out.CurrentPrice = t.Price
		out.LastUpdated = t.Timestamp.UTC()
	}

	// 52-week range from a year of daily bars; a failure leaves it blank.
	to := time.Now().UTC()
	if bars, err := p.bars(ctx, l.Ticker, to.AddDate(-1, 0, 0), to); err == nil {
		out.High52Week, out.Low52Week = rangeOf(bars)
	} else {
		p.log.Warn("52-week range unavailable", "ticker", l.Ticker, "error", err)
	}
	return out, nil
}

func (p *AlpacaProvider) bars(ctx context.Context, ticker string, from, to time.Time) ([]marketdata.Bar, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	bars, err := p.data.GetBars(ticker, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     from,
		End:       to,
		Feed:      p.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", ticker, err)
	}
	return bars, nil
}

func (p *AlpacaProvider) Historical(ctx context.Context, ticker string, from, to time.Time) ([]domain.PricePoint, error) {
	l, err := p.lookup(ctx, ticker)
	if err != nil {
		return nil, err
	}
	bars, err := p.bars(ctx, l.Ticker, from, to)
	if err != nil {
		return nil, err
	}
	points := make([]domain.PricePoint, 0, len(bars))
	for _, b := range bars {
		points = append(points, domain.PricePoint{
			Date:   b.Timestamp.UTC().Format("2006-01-02"),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return points, nil
}

func (p *AlpacaProvider) Financials(ctx context.Context, ticker string, _ int, _ string) ([]domain.FinancialReport, error) {
	if _, err := p.lookup(ctx, ticker); err != nil {
		return nil, err
	}
	return []domain.FinancialReport{}, nil
}

func (p *AlpacaProvider) news(ctx context.Context, symbols []string, limit int) ([]marketdata.News, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	news, err := p.data.GetNews(marketdata.GetNewsRequest{
		Symbols:    symbols,
		End:        time.Now(),
		TotalLimit: limit,
		Sort:       marketdata.SortDesc,
	})
	if err != nil {
		return nil, fmt.Errorf("GetNews: %w", err)
	}
	return news, nil
}

func (p *AlpacaProvider) News(ctx context.Context, ticker string, limit int) ([]domain.NewsArticle, error) {
	l, err := p.lookup(ctx, ticker)
	if err != nil {
		return nil, err
	}
	news, err := p.news(ctx, []string{l.Ticker}, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.NewsArticle, 0, len(news))
	for _, n := range news {
		out = append(out, articleFromNews(n))
	}
	return out, nil
}

// articleFromNews maps an Alpaca news item. Alpaca carries no publisher,
// so the byline stands in for it.
func articleFromNews(n marketdata.News) domain.NewsArticle {
	publisher := strings.TrimSpace(n.Author)
	if publisher == "" {
		publisher = "Alpaca"
	}
	a := domain.NewsArticle{
		ID:           strconv.Itoa(n.ID),
		Title:        n.Headline,
		Description:  n.Summary,
		PublishedUTC: n.CreatedAt.UTC(),
		ArticleURL:   n.URL,
		Publisher:    domain.Publisher{Name: publisher},
		Tickers:      n.Symbols,
	}
	if len(n.Images) > 0 {
		a.ImageURL = n.Images[0].URL
	}
	return a
}

func (p *AlpacaProvider) MarketNews(ctx context.Context, limit int) ([]domain.MarketNewsItem, error) {
	news, err := p.news(ctx, nil, limit)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]domain.MarketNewsItem, 0, len(news))
	for i, n := range news {
		out = append(out, domain.MarketNewsItem{
			ID:        i + 1,
			Headline:  n.Headline,
			Summary:   n.Summary,
			Category:  "Markets",
			Sentiment: "neutral",
			Time:      relativeTime(now, n.CreatedAt),
		})
	}
	return out, nil
}

func rangeOf(bars []marketdata.Bar) (high, low float64) {
	for i, b := range bars {
		if i == 0 || b.High > high {
			high = b.High
		}
		if i == 0 || b.Low < low {
			low = b.Low
		}
	}
	return high, low
}
