// Package domain defines the core types shared by the stonklytics client
// controllers, the backend SDK, and the reference backend.
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// User is the identity reference owned by the session. The rest of the
// system treats it as read-only.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	LastLoginAt   time.Time `json:"last_login_at"`
}

// ---------------------------------------------------------------------------
// Watchlists
// ---------------------------------------------------------------------------

// Watchlist is a named, user-owned collection of tickers. Items keep the
// order the server returned them in.
type Watchlist struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"created_at"`
	Items     []WatchlistItem `json:"items"`
}

// Has reports whether ticker is a member of the watchlist.
func (w *Watchlist) Has(ticker string) bool {
	ticker = NormalizeTicker(ticker)
	for i := range w.Items {
		if w.Items[i].Ticker == ticker {
			return true
		}
	}
	return false
}

// Tickers returns the member tickers in server order.
func (w *Watchlist) Tickers() []string {
	out := make([]string, len(w.Items))
	for i := range w.Items {
		out[i] = w.Items[i].Ticker
	}
	return out
}

// Clone returns a deep copy.
func (w Watchlist) Clone() Watchlist {
	w.Items = append([]WatchlistItem(nil), w.Items...)
	return w
}

// WatchlistItem is one ticker inside a watchlist.
type WatchlistItem struct {
	Ticker  string    `json:"symbol"`
	Name    string    `json:"name,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// UnmarshalJSON accepts both the "symbol" key and the legacy "ticker" key.
func (it *WatchlistItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		Symbol  string    `json:"symbol"`
		Ticker  string    `json:"ticker"`
		Name    string    `json:"name"`
		AddedAt time.Time `json:"added_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	it.Ticker = raw.Symbol
	if it.Ticker == "" {
		it.Ticker = raw.Ticker
	}
	it.Ticker = NormalizeTicker(it.Ticker)
	it.Name = raw.Name
	it.AddedAt = raw.AddedAt
	return nil
}

// NormalizeTicker trims whitespace and upper-cases a ticker symbol.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// StockSnapshot is a point-in-time price and fundamentals record for one
// ticker. Each fetch supersedes the previous one wholesale.
type StockSnapshot struct {
	Ticker       string    `json:"ticker"`
	Name         string    `json:"name"`
	CurrentPrice float64   `json:"current_price"`
	OpenPrice    float64   `json:"open_price,omitempty"`
	HighPrice    float64   `json:"high_price,omitempty"`
	LowPrice     float64   `json:"low_price,omitempty"`
	ClosePrice   float64   `json:"close_price,omitempty"`
	MarketCap    float64   `json:"market_cap,omitempty"`
	Volume       uint64    `json:"volume"`
	High52Week   float64   `json:"high_52_week,omitempty"`
	Low52Week    float64   `json:"low_52_week,omitempty"`
	Sector       string    `json:"sector,omitempty"`
	Industry     string    `json:"industry,omitempty"`
	Source       string    `json:"source"`
	LastUpdated  time.Time `json:"last_updated"`
}

// SearchSuggestion is one entry of a ticker search result.
type SearchSuggestion struct {
	Ticker          string `json:"ticker"`
	Name            string `json:"name"`
	PrimaryExchange string `json:"primary_exchange"`
}

// PricePoint is one daily bar of a historical price series.
type PricePoint struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume uint64  `json:"volume"`
}

// FinancialValue is a single reported line item.
type FinancialValue struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
	Label string  `json:"label,omitempty"`
}

// FinancialReport is one fiscal period of statements, keyed by statement
// name ("income_statement", "cash_flow_statement", ...) and line item.
type FinancialReport struct {
	StartDate    string                               `json:"start_date"`
	EndDate      string                               `json:"end_date"`
	FiscalYear   string                               `json:"fiscal_year"`
	FiscalPeriod string                               `json:"fiscal_period"`
	Financials   map[string]map[string]FinancialValue `json:"financials"`
}

// Publisher identifies the source of a news article.
type Publisher struct {
	Name string `json:"name"`
}

// NewsArticle is a ticker-specific news item.
type NewsArticle struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	PublishedUTC time.Time `json:"published_utc"`
	ArticleURL   string    `json:"article_url,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	Publisher    Publisher `json:"publisher"`
	Tickers      []string  `json:"tickers,omitempty"`
}

// MarketNewsItem is a market-wide headline.
type MarketNewsItem struct {
	ID        int    `json:"id"`
	Headline  string `json:"headline"`
	Summary   string `json:"summary"`
	Category  string `json:"category"`
	Sentiment string `json:"sentiment"`
	Time      string `json:"time"`
}

// Reference is a source cited by a summary.
type Reference struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Summary is a short generated outlook for a ticker.
type Summary struct {
	Symbol     string      `json:"symbol"`
	Summary    string      `json:"summary"`
	Source     string      `json:"source"`
	References []Reference `json:"references,omitempty"`
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

// Chat roles as understood by the backend.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ChatPart is one text fragment of a chat turn.
type ChatPart struct {
	Text string `json:"text"`
}

// ChatTurn is one entry of the conversation history sent to the backend.
type ChatTurn struct {
	Role  string     `json:"role"`
	Parts []ChatPart `json:"parts"`
}

// WatchlistStock is a ticker reference inside a chat watchlist context.
type WatchlistStock struct {
	Ticker string `json:"ticker"`
}

// WatchlistContext lets the assistant see one of the user's watchlists.
type WatchlistContext struct {
	Name   string           `json:"name"`
	Stocks []WatchlistStock `json:"stocks"`
}

// ContextFor builds the chat context for a watchlist.
func ContextFor(w Watchlist) *WatchlistContext {
	c := &WatchlistContext{Name: w.Name, Stocks: make([]WatchlistStock, 0, len(w.Items))}
	for _, it := range w.Items {
		c.Stocks = append(c.Stocks, WatchlistStock{Ticker: it.Ticker})
	}
	return c
}
