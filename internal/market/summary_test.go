package market

import (
	"strings"
	"testing"

	"stonklytics/internal/domain"
)

func TestBuildSummary(t *testing.T) {
	snap := &domain.StockSnapshot{
		Ticker:       "AAPL",
		Name:         "Apple Inc.",
		Sector:       "Technology",
		Industry:     "Consumer Electronics",
		CurrentPrice: 110,
		ClosePrice:   100,
		High52Week:   199.62,
		Low52Week:    164.08,
	}
	news := []domain.NewsArticle{
		{Title: "Apple unveils new MacBook lineup", ArticleURL: "https://example.com/1"},
		{Title: "No link"},
	}

	s := BuildSummary("aapl", snap, news)
	if s.Symbol != "AAPL" || s.Source != "fresh" {
		t.Errorf("Symbol/Source = %s/%s", s.Symbol, s.Source)
	}
	lines := strings.Split(s.Summary, "\n")
	if len(lines) != 6 {
		t.Fatalf("got %d bullets, want 6:\n%s", len(lines), s.Summary)
	}
	for _, l := range lines {
		if !strings.HasPrefix(l, "• ") {
			t.Errorf("line %q is not a bullet", l)
		}
	}
	if !strings.Contains(s.Summary, "Sector / Industry: Technology / Consumer Electronics") {
		t.Errorf("missing industry:\n%s", s.Summary)
	}
	if !strings.Contains(s.Summary, "up 10.00% from the previous close") {
		t.Errorf("missing change:\n%s", s.Summary)
	}
	if len(s.References) != 1 || s.References[0].URL != "https://example.com/1" {
		t.Errorf("References = %+v", s.References)
	}
}

func TestBuildSummaryFallback(t *testing.T) {
	s := BuildSummary("zzz", nil, nil)
	if !strings.HasPrefix(s.Summary, "• ZZZ: no detailed context available.") {
		t.Errorf("Summary = %q", s.Summary)
	}
	if strings.Count(s.Summary, "\n") != 0 {
		t.Errorf("fallback should be one bullet: %q", s.Summary)
	}
}

func TestBuildSummaryDown(t *testing.T) {
	s := BuildSummary("X", &domain.StockSnapshot{CurrentPrice: 90, ClosePrice: 100}, nil)
	if !strings.Contains(s.Summary, "Last price $90.00, down 10.00% from the previous close") {
		t.Errorf("Summary = %q", s.Summary)
	}
}
