package market

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"stonklytics/internal/domain"
)

var _ Provider = (*FixtureProvider)(nil)

//go:embed fixtures.yaml
var defaultFixtures []byte

// fixtureFile is the on-disk layout of a fixtures YAML file.
type fixtureFile struct {
	Stocks     []fixtureStock          `yaml:"stocks"`
	MarketNews []domain.MarketNewsItem `yaml:"market_news"`
}

type fixtureStock struct {
	Ticker     string           `yaml:"ticker"`
	Name       string           `yaml:"name"`
	Exchange   string           `yaml:"exchange"`
	Sector     string           `yaml:"sector"`
	Industry   string           `yaml:"industry"`
	Price      float64          `yaml:"price"`
	Open       float64          `yaml:"open"`
	High       float64          `yaml:"high"`
	Low        float64          `yaml:"low"`
	PrevClose  float64          `yaml:"prev_close"`
	Volume     uint64           `yaml:"volume"`
	MarketCap  float64          `yaml:"market_cap"`
	High52Week float64          `yaml:"high_52_week"`
	Low52Week  float64          `yaml:"low_52_week"`
	Financials []fixtureReport  `yaml:"financials"`
	News       []fixtureArticle `yaml:"news"`
}

type fixtureReport struct {
	FiscalYear   string             `yaml:"fiscal_year"`
	FiscalPeriod string             `yaml:"fiscal_period"`
	StartDate    string             `yaml:"start_date"`
	EndDate      string             `yaml:"end_date"`
	Income       map[string]float64 `yaml:"income_statement"`
	Balance      map[string]float64 `yaml:"balance_sheet"`
	CashFlow     map[string]float64 `yaml:"cash_flow_statement"`
}

type fixtureArticle struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Published   time.Time `yaml:"published"`
	URL         string    `yaml:"url"`
	Publisher   string    `yaml:"publisher"`
}

// FixtureProvider serves market data from a YAML file. Daily bars are
// synthesized deterministically around the fixture price, so any date
// range has data.
type FixtureProvider struct {
	stocks     map[string]fixtureStock
	listings   []listing
	marketNews []domain.MarketNewsItem
	now        func() time.Time
}

// NewFixtureProvider loads fixtures from path; an empty path uses the
// built-in set.
func NewFixtureProvider(path string) (*FixtureProvider, error) {
	data := defaultFixtures
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return parseFixtures(data)
}

func parseFixtures(data []byte) (*FixtureProvider, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixtures: %w", err)
	}
	p := &FixtureProvider{
		stocks:     make(map[string]fixtureStock, len(f.Stocks)),
		marketNews: f.MarketNews,
		now:        time.Now,
	}
	for _, s := range f.Stocks {
		s.Ticker = domain.NormalizeTicker(s.Ticker)
		if s.Ticker == "" {
			return nil, fmt.Errorf("fixture stock without ticker")
		}
		p.stocks[s.Ticker] = s
		p.listings = append(p.listings, listing{Ticker: s.Ticker, Name: s.Name, Exchange: s.Exchange})
	}
	return p, nil
}

func (p *FixtureProvider) Name() string { return "fixtures" }

func (p *FixtureProvider) stock(ticker string) (fixtureStock, error) {
	s, ok := p.stocks[domain.NormalizeTicker(ticker)]
	if !ok {
		return fixtureStock{}, ErrUnknownTicker
	}
	return s, nil
}

func (p *FixtureProvider) Search(_ context.Context, query string, limit int) ([]domain.SearchSuggestion, error) {
	return rankListings(p.listings, query, limit), nil
}

func (p *FixtureProvider) Snapshot(_ context.Context, ticker string) (*domain.StockSnapshot, error) {
	s, err := p.stock(ticker)
	if err != nil {
		return nil, err
	}
	return &domain.StockSnapshot{
		Ticker:       s.Ticker,
		Name:         s.Name,
		CurrentPrice: s.Price,
		OpenPrice:    s.Open,
		HighPrice:    s.High,
		LowPrice:     s.Low,
		ClosePrice:   s.PrevClose,
		MarketCap:    s.MarketCap,
		Volume:       s.Volume,
		High52Week:   s.High52Week,
		Low52Week:    s.Low52Week,
		Sector:       s.Sector,
		Industry:     s.Industry,
		Source:       p.Name(),
		LastUpdated:  p.now().UTC(),
	}, nil
}

func (p *FixtureProvider) Historical(_ context.Context, ticker string, from, to time.Time) ([]domain.PricePoint, error) {
	s, err := p.stock(ticker)
	if err != nil {
		return nil, err
	}
	var points []domain.PricePoint
	for d := dayOf(from); !d.After(dayOf(to)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		points = append(points, syntheticBar(s, d))
	}
	if points == nil {
		points = []domain.PricePoint{}
	}
	return points, nil
}

// syntheticBar derives a bar for day from the fixture price with a slow
// seasonal swing of a few percent.
func syntheticBar(s fixtureStock, day time.Time) domain.PricePoint {
	seed := 0.0
	for _, r := range s.Ticker {
		seed += float64(r)
	}
	t := float64(day.Unix()/86400) + seed
	mid := s.Price * (1 + 0.06*math.Sin(t/23) + 0.02*math.Sin(t/5))
	open := mid * (1 - 0.004*math.Cos(t))
	spread := mid * 0.012
	return domain.PricePoint{
		Date:   day.Format("2006-01-02"),
		Open:   round2(open),
		High:   round2(math.Max(open, mid) + spread/2),
		Low:    round2(math.Min(open, mid) - spread/2),
		Close:  round2(mid),
		Volume: s.Volume/2 + uint64(float64(s.Volume/2)*(1+math.Sin(t))/2),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (p *FixtureProvider) Financials(_ context.Context, ticker string, limit int, timeframe string) ([]domain.FinancialReport, error) {
	s, err := p.stock(ticker)
	if err != nil {
		return nil, err
	}
	out := []domain.FinancialReport{}
	for _, r := range s.Financials {
		annual := r.FiscalPeriod == "FY"
		if (timeframe == "annual" && !annual) || (timeframe == "quarterly" && annual) {
			continue
		}
		out = append(out, domain.FinancialReport{
			StartDate:    r.StartDate,
			EndDate:      r.EndDate,
			FiscalYear:   r.FiscalYear,
			FiscalPeriod: r.FiscalPeriod,
			Financials: map[string]map[string]domain.FinancialValue{
				"income_statement":    statement(r.Income),
				"balance_sheet":       statement(r.Balance),
				"cash_flow_statement": statement(r.CashFlow),
			},
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndDate > out[j].EndDate })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func statement(lines map[string]float64) map[string]domain.FinancialValue {
	out := make(map[string]domain.FinancialValue, len(lines))
	for k, v := range lines {
		out[k] = domain.FinancialValue{
			Value: v,
			Unit:  "USD",
			Label: labelFor(k),
		}
	}
	return out
}

// labelFor turns "net_income_loss" into "Net Income Loss".
func labelFor(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func (p *FixtureProvider) News(_ context.Context, ticker string, limit int) ([]domain.NewsArticle, error) {
	s, err := p.stock(ticker)
	if err != nil {
		return nil, err
	}
	out := make([]domain.NewsArticle, 0, len(s.News))
	for _, n := range s.News {
		out = append(out, domain.NewsArticle{
			ID:           n.ID,
			Title:        n.Title,
			Description:  n.Description,
			PublishedUTC: n.Published.UTC(),
			ArticleURL:   n.URL,
			Publisher:    domain.Publisher{Name: n.Publisher},
			Tickers:      []string{s.Ticker},
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedUTC.After(out[j].PublishedUTC) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (p *FixtureProvider) MarketNews(_ context.Context, limit int) ([]domain.MarketNewsItem, error) {
	out := append([]domain.MarketNewsItem{}, p.marketNews...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
