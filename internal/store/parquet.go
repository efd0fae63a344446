package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"stonklytics/internal/domain"
)

// Archive keeps market data fetched by the backend as Parquet files on disk
// so repeated requests do not hit the upstream provider.
type Archive struct {
	DataDir string
}

// NewArchive creates an Archive rooted at the given data directory.
func NewArchive(dataDir string) *Archive {
	return &Archive{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// PriceRecord is the Parquet schema for daily bars.
type PriceRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms, midnight UTC
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// NewsRecord is the Parquet schema for ticker news.
type NewsRecord struct {
	ID          string `parquet:"id"`
	Title       string `parquet:"title"`
	Description string `parquet:"description"`
	Published   int64  `parquet:"published,timestamp(millisecond)"`
	URL         string `parquet:"url"`
	ImageURL    string `parquet:"image_url"`
	Publisher   string `parquet:"publisher"`
	Tickers     string `parquet:"tickers"` // comma separated
}

// MarketNewsRecord is the Parquet schema for market-wide headlines.
type MarketNewsRecord struct {
	ID        int64  `parquet:"id"`
	Headline  string `parquet:"headline"`
	Summary   string `parquet:"summary"`
	Category  string `parquet:"category"`
	Sentiment string `parquet:"sentiment"`
	Time      string `parquet:"time"`
}

const dateLayout = "2006-01-02"

// ---------------------------------------------------------------------------
// Daily prices
// ---------------------------------------------------------------------------

// WritePrices merges daily bars into per-year files:
//
//	<DataDir>/prices/<SYMBOL>/<YYYY>.parquet
func (a *Archive) WritePrices(symbol string, points []domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	symbol = domain.NormalizeTicker(symbol)

	groups := make(map[int][]PriceRecord)
	for _, p := range points {
		day, err := time.Parse(dateLayout, p.Date)
		if err != nil {
			return fmt.Errorf("bad bar date %q: %w", p.Date, err)
		}
		groups[day.Year()] = append(groups[day.Year()], PriceRecord{
			Symbol:    symbol,
			Timestamp: day.UnixMilli(),
			Open:      p.Open,
			High:      p.High,
			Low:       p.Low,
			Close:     p.Close,
			Volume:    int64(p.Volume),
		})
	}

	for year, records := range groups {
		path := a.pricePath(symbol, year)
		existing, _ := readParquetFile[PriceRecord](path)
		merged := mergePriceRecords(existing, records)
		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing prices for %s/%d: %w", symbol, year, err)
		}
	}
	return nil
}

// ReadPrices returns archived bars with dates in [from, to], oldest first.
func (a *Archive) ReadPrices(symbol string, from, to time.Time) ([]domain.PricePoint, error) {
	symbol = domain.NormalizeTicker(symbol)
	from = truncateDay(from)
	to = truncateDay(to)

	var points []domain.PricePoint
	for year := from.Year(); year <= to.Year(); year++ {
		records, err := readParquetFile[PriceRecord](a.pricePath(symbol, year))
		if err != nil {
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if ts.Before(from) || ts.After(to) {
				continue
			}
			points = append(points, domain.PricePoint{
				Date:   ts.Format(dateLayout),
				Open:   r.Open,
				High:   r.High,
				Low:    r.Low,
				Close:  r.Close,
				Volume: uint64(r.Volume),
			})
		}
	}
	return points, nil
}

// ---------------------------------------------------------------------------
// News
// ---------------------------------------------------------------------------

// WriteNews merges articles for one ticker into <DataDir>/news/<SYMBOL>.parquet.
func (a *Archive) WriteNews(symbol string, articles []domain.NewsArticle) error {
	if len(articles) == 0 {
		return nil
	}
	records := make([]NewsRecord, 0, len(articles))
	for _, n := range articles {
		records = append(records, NewsRecord{
			ID:          n.ID,
			Title:       n.Title,
			Description: n.Description,
			Published:   n.PublishedUTC.UnixMilli(),
			URL:         n.ArticleURL,
			ImageURL:    n.ImageURL,
			Publisher:   n.Publisher.Name,
			Tickers:     strings.Join(n.Tickers, ","),
		})
	}
	path := a.newsPath(symbol)
	existing, _ := readParquetFile[NewsRecord](path)
	return writeParquetFile(path, mergeNewsRecords(existing, records))
}

// ReadNews returns up to limit archived articles for symbol, newest first.
// A missing archive yields no articles and no error.
func (a *Archive) ReadNews(symbol string, limit int) ([]domain.NewsArticle, error) {
	records, err := readParquetFile[NewsRecord](a.newsPath(symbol))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	out := make([]domain.NewsArticle, 0, len(records))
	for _, r := range records {
		n := domain.NewsArticle{
			ID:           r.ID,
			Title:        r.Title,
			Description:  r.Description,
			PublishedUTC: time.UnixMilli(r.Published).UTC(),
			ArticleURL:   r.URL,
			ImageURL:     r.ImageURL,
			Publisher:    domain.Publisher{Name: r.Publisher},
		}
		if r.Tickers != "" {
			n.Tickers = strings.Split(r.Tickers, ",")
		}
		out = append(out, n)
	}
	return out, nil
}

// WriteMarketNews stores the headlines of one day, replacing any earlier
// copy: <DataDir>/news/market/<YYYY-MM-DD>.parquet
func (a *Archive) WriteMarketNews(day time.Time, items []domain.MarketNewsItem) error {
	records := make([]MarketNewsRecord, 0, len(items))
	for _, it := range items {
		records = append(records, MarketNewsRecord{
			ID:        int64(it.ID),
			Headline:  it.Headline,
			Summary:   it.Summary,
			Category:  it.Category,
			Sentiment: it.Sentiment,
			Time:      it.Time,
		})
	}
	return writeParquetFile(a.marketNewsPath(day), records)
}

// ReadMarketNews returns the headlines stored for day in their original order.
func (a *Archive) ReadMarketNews(day time.Time) ([]domain.MarketNewsItem, error) {
	records, err := readParquetFile[MarketNewsRecord](a.marketNewsPath(day))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]domain.MarketNewsItem, 0, len(records))
	for _, r := range records {
		out = append(out, domain.MarketNewsItem{
			ID:        int(r.ID),
			Headline:  r.Headline,
			Summary:   r.Summary,
			Category:  r.Category,
			Sentiment: r.Sentiment,
			Time:      r.Time,
		})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

func (a *Archive) pricePath(symbol string, year int) string {
	return filepath.Join(a.DataDir, "prices", domain.NormalizeTicker(symbol), fmt.Sprintf("%d.parquet", year))
}

func (a *Archive) newsPath(symbol string) string {
	return filepath.Join(a.DataDir, "news", domain.NormalizeTicker(symbol)+".parquet")
}

func (a *Archive) marketNewsPath(day time.Time) string {
	return filepath.Join(a.DataDir, "news", "market", day.UTC().Format(dateLayout)+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return parquet.ReadFile[T](path)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// mergePriceRecords deduplicates by timestamp, preferring incoming records.
func mergePriceRecords(existing, incoming []PriceRecord) []PriceRecord {
	seen := make(map[int64]PriceRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}
	merged := make([]PriceRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

// mergeNewsRecords deduplicates by article ID, preferring incoming records.
// Results are sorted newest first.
func mergeNewsRecords(existing, incoming []NewsRecord) []NewsRecord {
	seen := make(map[string]NewsRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.ID] = r
	}
	for _, r := range incoming {
		seen[r.ID] = r
	}
	merged := make([]NewsRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Published != merged[j].Published {
			return merged[i].Published > merged[j].Published
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
