package store

import (
	"path/filepath"
	"testing"
	"time"

	"stonklytics/internal/domain"
)

func TestArchivePaths(t *testing.T) {
	a := NewArchive("/data")

	if got, want := a.pricePath("aapl", 2024), filepath.Join("/data", "prices", "AAPL", "2024.parquet"); got != want {
		t.Errorf("pricePath mismatch:\n  got  %s\n  want %s", got, want)
	}
	if got, want := a.newsPath("tsla"), filepath.Join("/data", "news", "TSLA.parquet"); got != want {
		t.Errorf("newsPath mismatch:\n  got  %s\n  want %s", got, want)
	}
	day := time.Date(2024, 6, 15, 13, 0, 0, 0, time.UTC)
	if got, want := a.marketNewsPath(day), filepath.Join("/data", "news", "market", "2024-06-15.parquet"); got != want {
		t.Errorf("marketNewsPath mismatch:\n  got  %s\n  want %s", got, want)
	}
}

func TestArchiveWriteReadPrices(t *testing.T) {
	a := NewArchive(t.TempDir())

	points := []domain.PricePoint{
		{Date: "2023-12-29", Open: 193.9, High: 194.4, Low: 191.7, Close: 192.5, Volume: 42628800},
		{Date: "2024-01-02", Open: 187.2, High: 188.4, Low: 183.9, Close: 185.6, Volume: 82488700},
		{Date: "2024-01-03", Open: 184.2, High: 185.9, Low: 183.4, Close: 184.3, Volume: 58414500},
	}
	if err := a.WritePrices("AAPL", points); err != nil {
		t.Fatalf("WritePrices: %v", err)
	}

	got, err := a.ReadPrices("aapl", time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ReadPrices: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadPrices returned %d bars, want 2", len(got))
	}
	if got[0].Date != "2023-12-29" || got[1].Date != "2024-01-02" {
		t.Errorf("dates = %s, %s", got[0].Date, got[1].Date)
	}
	if got[1].Volume != 82488700 {
		t.Errorf("Volume = %d", got[1].Volume)
	}
}

func TestArchiveMergePrices(t *testing.T) {
	a := NewArchive(t.TempDir())

	if err := a.WritePrices("MSFT", []domain.PricePoint{{Date: "2024-03-01", Close: 403}}); err != nil {
		t.Fatalf("WritePrices (first): %v", err)
	}
	if err := a.WritePrices("MSFT", []domain.PricePoint{
		{Date: "2024-03-01", Close: 404},
		{Date: "2024-03-04", Close: 408},
	}); err != nil {
		t.Fatalf("WritePrices (second): %v", err)
	}

	got, err := a.ReadPrices("MSFT", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ReadPrices: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadPrices returned %d bars after merge, want 2", len(got))
	}
	if got[0].Close != 404 {
		t.Errorf("merged Close = %v, want 404", got[0].Close)
	}
}

func TestArchiveWritePricesBadDate(t *testing.T) {
	a := NewArchive(t.TempDir())
	if err := a.WritePrices("MSFT", []domain.PricePoint{{Date: "03/01/2024"}}); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestArchiveNews(t *testing.T) {
	a := NewArchive(t.TempDir())

	if got, err := a.ReadNews("AAPL", 10); err != nil || len(got) != 0 {
		t.Fatalf("ReadNews on empty archive = %v, %v", got, err)
	}

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first := []domain.NewsArticle{
		{ID: "a", Title: "Old", PublishedUTC: base, Publisher: domain.Publisher{Name: "Wire"}, Tickers: []string{"AAPL"}},
		{ID: "b", Title: "Newer", PublishedUTC: base.Add(time.Hour)},
	}
	if err := a.WriteNews("AAPL", first); err != nil {
		t.Fatalf("WriteNews: %v", err)
	}
	if err := a.WriteNews("AAPL", []domain.NewsArticle{
		{ID: "c", Title: "Newest", PublishedUTC: base.Add(2 * time.Hour), Tickers: []string{"AAPL", "MSFT"}},
		{ID: "a", Title: "Old (updated)", PublishedUTC: base},
	}); err != nil {
		t.Fatalf("WriteNews: %v", err)
	}

	got, err := a.ReadNews("AAPL", 0)
	if err != nil {
		t.Fatalf("ReadNews: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ReadNews returned %d articles, want 3", len(got))
	}
	if got[0].ID != "c" || got[2].Title != "Old (updated)" {
		t.Errorf("order/merge wrong: %+v", got)
	}
	if len(got[0].Tickers) != 2 || got[0].Tickers[1] != "MSFT" {
		t.Errorf("Tickers = %v", got[0].Tickers)
	}

	limited, _ := a.ReadNews("AAPL", 2)
	if len(limited) != 2 {
		t.Errorf("limit ignored: %d", len(limited))
	}
}

func TestArchiveMarketNews(t *testing.T) {
	a := NewArchive(t.TempDir())
	day := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	items := []domain.MarketNewsItem{
		{ID: 1, Headline: "Stocks rally", Category: "markets", Sentiment: "positive", Time: "9:30 AM"},
		{ID: 2, Headline: "Fed holds", Category: "economy", Sentiment: "neutral", Time: "2:00 PM"},
	}
	if err := a.WriteMarketNews(day, items); err != nil {
		t.Fatalf("WriteMarketNews: %v", err)
	}
	got, err := a.ReadMarketNews(day.Add(5 * time.Hour))
	if err != nil {
		t.Fatalf("ReadMarketNews: %v", err)
	}
	if len(got) != 2 || got[1].Headline != "Fed holds" {
		t.Errorf("ReadMarketNews = %+v", got)
	}

	other, err := a.ReadMarketNews(day.AddDate(0, 0, 1))
	if err != nil || other != nil {
		t.Errorf("other day = %v, %v; want nil, nil", other, err)
	}
}
