// Package market supplies the reference backend with quotes, bars, news and
// summaries. A Provider talks to one data source; Service layers caching,
// the Parquet archive and summaries on top of it.
package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"stonklytics/internal/domain"
)

// ErrUnknownTicker is returned for symbols the provider does not list.
var ErrUnknownTicker = errors.New("unknown ticker")

// DefaultSearchLimit caps search results.
const DefaultSearchLimit = 10

// Provider is a source of market data.
type Provider interface {
	// Name identifies the provider in the "source" field of snapshots.
	Name() string
	Search(ctx context.Context, query string, limit int) ([]domain.SearchSuggestion, error)
	Snapshot(ctx context.Context, ticker string) (*domain.StockSnapshot, error)
	// Historical returns daily bars with dates in [from, to], oldest first.
	Historical(ctx context.Context, ticker string, from, to time.Time) ([]domain.PricePoint, error)
	Financials(ctx context.Context, ticker string, limit int, timeframe string) ([]domain.FinancialReport, error)
	// News returns ticker news, newest first.
	News(ctx context.Context, ticker string, limit int) ([]domain.NewsArticle, error)
	MarketNews(ctx context.Context, limit int) ([]domain.MarketNewsItem, error)
}

// listing is the searchable part of a security.
type listing struct {
	Ticker   string
	Name     string
	Exchange string
}

// rankListings returns the listings matching query, best first: exact
// ticker, ticker prefix, ticker substring, then company-name substring.
// Ties sort by ticker.
func rankListings(all []listing, query string, limit int) []domain.SearchSuggestion {
	q := strings.ToUpper(strings.TrimSpace(query))
	if q == "" {
		return []domain.SearchSuggestion{}
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	type hit struct {
		l    listing
		rank int
	}
	var hits []hit
	for _, l := range all {
		switch {
		case l.Ticker == q:
			hits = append(hits, hit{l, 0})
		case strings.HasPrefix(l.Ticker, q):
			hits = append(hits, hit{l, 1})
		case strings.Contains(l.Ticker, q):
			hits = append(hits, hit{l, 2})
		case strings.Contains(strings.ToUpper(l.Name), q):
			hits = append(hits, hit{l, 3})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank < hits[j].rank
		}
		return hits[i].l.Ticker < hits[j].l.Ticker
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]domain.SearchSuggestion, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.SearchSuggestion{
			Ticker:          h.l.Ticker,
			Name:            h.l.Name,
			PrimaryExchange: h.l.Exchange,
		})
	}
	return out
}

// relativeTime renders t the way market headlines are labelled
// ("Just now", "45 minutes ago", "2 hours ago", "3 days ago").
func relativeTime(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
