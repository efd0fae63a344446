package market

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"stonklytics/internal/domain"
	"stonklytics/internal/store"
)

const (
	summaryNewsLimit = 3
	marketNewsLimit  = 5
)

// MarketNews is the market-wide headline feed.
type MarketNews struct {
	Items       []domain.MarketNewsItem
	GeneratedAt string
	Source      string
}

// Service is what the HTTP handlers call. It caches snapshots and
// summaries, archives bars and news, and serves the archive when the
// provider fails.
type Service struct {
	provider    Provider
	cache       Cache
	archive     *store.Archive
	snapshotTTL time.Duration
	summaryTTL  time.Duration
	log         *slog.Logger
	now         func() time.Time
}

// ServiceOptions configures NewService. Nil Cache selects a MemoryCache;
// nil Archive disables archiving.
type ServiceOptions struct {
	Cache       Cache
	Archive     *store.Archive
	SnapshotTTL time.Duration
	SummaryTTL  time.Duration
	Logger      *slog.Logger
}

func NewService(p Provider, opts ServiceOptions) *Service {
	s := &Service{
		provider:    p,
		cache:       opts.Cache,
		archive:     opts.Archive,
		snapshotTTL: opts.SnapshotTTL,
		summaryTTL:  opts.SummaryTTL,
		log:         opts.Logger,
		now:         time.Now,
	}
	if s.cache == nil {
		s.cache = NewMemoryCache()
	}
	if s.snapshotTTL <= 0 {
		s.snapshotTTL = time.Hour
	}
	if s.summaryTTL <= 0 {
		s.summaryTTL = 30 * time.Minute
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// ProviderName reports the upstream provider.
func (s *Service) ProviderName() string { return s.provider.Name() }

func (s *Service) Search(ctx context.Context, query string) ([]domain.SearchSuggestion, error) {
	return s.provider.Search(ctx, query, DefaultSearchLimit)
}

func (s *Service) Snapshot(ctx context.Context, ticker string) (*domain.StockSnapshot, error) {
	ticker = domain.NormalizeTicker(ticker)
	key := "snapshot:" + ticker

	var cached domain.StockSnapshot
	if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.log.Warn("snapshot cache read failed", "ticker", ticker, "error", err)
	} else if ok {
		return &cached, nil
	}

	snap, err := s.provider.Snapshot(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, snap, s.snapshotTTL); err != nil {
		s.log.Warn("snapshot cache write failed", "ticker", ticker, "error", err)
	}
	return snap, nil
}

func (s *Service) Historical(ctx context.Context, ticker string, from, to time.Time) ([]domain.PricePoint, error) {
	ticker = domain.NormalizeTicker(ticker)
	points, err := s.provider.Historical(ctx, ticker, from, to)
	if err == nil {
		if s.archive != nil {
			if werr := s.archive.WritePrices(ticker, points); werr != nil {
				s.log.Warn("archiving prices failed", "ticker", ticker, "error", werr)
			}
		}
		return points, nil
	}
	if s.archive == nil || errors.Is(err, ErrUnknownTicker) {
		return nil, err
	}

	archived, aerr := s.archive.ReadPrices(ticker, from, to)
	if aerr != nil || len(archived) == 0 {
		return nil, err
	}
	s.log.Warn("serving archived prices", "ticker", ticker, "error", err)
	return archived, nil
}

func (s *Service) Financials(ctx context.Context, ticker string, limit int, timeframe string) ([]domain.FinancialReport, error) {
	return s.provider.Financials(ctx, ticker, limit, timeframe)
}

func (s *Service) News(ctx context.Context, ticker string, limit int) ([]domain.NewsArticle, error) {
	ticker = domain.NormalizeTicker(ticker)
	news, err := s.provider.News(ctx, ticker, limit)
	if err == nil {
		if s.archive != nil {
			if werr := s.archive.WriteNews(ticker, news); werr != nil {
				s.log.Warn("archiving news failed", "ticker", ticker, "error", werr)
			}
		}
		return news, nil
	}
	if s.archive == nil || errors.Is(err, ErrUnknownTicker) {
		return nil, err
	}

	archived, aerr := s.archive.ReadNews(ticker, limit)
	if aerr != nil || len(archived) == 0 {
		return nil, err
	}
	s.log.Warn("serving archived news", "ticker", ticker, "error", err)
	return archived, nil
}

func (s *Service) MarketNews(ctx context.Context) (*MarketNews, error) {
	now := s.now()
	out := &MarketNews{GeneratedAt: now.Format("January 02, 2006"), Source: s.provider.Name()}

	items, err := s.provider.MarketNews(ctx, marketNewsLimit)
	if err == nil {
		if s.archive != nil {
			if werr := s.archive.WriteMarketNews(now, items); werr != nil {
				s.log.Warn("archiving market news failed", "error", werr)
			}
		}
		out.Items = items
		return out, nil
	}
	if s.archive == nil {
		return nil, err
	}

	archived, aerr := s.archive.ReadMarketNews(now)
	if aerr != nil || len(archived) == 0 {
		return nil, err
	}
	s.log.Warn("serving archived market news", "error", err)
	out.Items = archived
	out.Source = "archive"
	return out, nil
}

// Summary never fails: missing context degrades the text instead.
func (s *Service) Summary(ctx context.Context, ticker string) domain.Summary {
	ticker = domain.NormalizeTicker(ticker)
	key := "summary:" + ticker

	var cached domain.Summary
	if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.log.Warn("summary cache read failed", "ticker", ticker, "error", err)
	} else if ok {
		cached.Source = "cache"
		return cached
	}

	snap, err := s.Snapshot(ctx, ticker)
	if err != nil {
		s.log.Warn("summary without snapshot", "ticker", ticker, "error", err)
		snap = nil
	}
	news, err := s.provider.News(ctx, ticker, summaryNewsLimit)
	if err != nil {
		news = nil
	}

	sum := BuildSummary(ticker, snap, news)
	if snap != nil {
		if err := s.cache.Set(ctx, key, sum, s.summaryTTL); err != nil {
			s.log.Warn("summary cache write failed", "ticker", ticker, "error", err)
		}
	}
	return sum
}
