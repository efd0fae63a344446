package stonklytics

import "stonklytics/internal/domain"

// SearchResponse is the body of GET /stock/search/.
type SearchResponse struct {
	Results []domain.SearchSuggestion `json:"results"`
}

// HistoricalResponse is the body of GET /stock/data/historical/.
type HistoricalResponse struct {
	Ticker string              `json:"ticker"`
	Prices []domain.PricePoint `json:"prices"`
}

// FinancialsResponse is the body of GET /stock/financials/.
type FinancialsResponse struct {
	Results []domain.FinancialReport `json:"results"`
}

// NewsResponse is the body of GET /stock/news/.
type NewsResponse struct {
	Results []domain.NewsArticle `json:"results"`
}

// MarketNewsResponse is the body of GET /market-news.
type MarketNewsResponse struct {
	News        []domain.MarketNewsItem `json:"news"`
	GeneratedAt string                  `json:"generated_at,omitempty"`
	Source      string                  `json:"source,omitempty"`
}

// CreateWatchlistRequest is the body of POST /watchlist/create.
type CreateWatchlistRequest struct {
	Name string `json:"name"`
}

// CreateWatchlistResponse accepts both the {message, watchlist} shape and
// the {success, data, error} envelope.
type CreateWatchlistResponse struct {
	Message   string            `json:"message,omitempty"`
	Watchlist *domain.Watchlist `json:"watchlist,omitempty"`
	Success   *bool             `json:"success,omitempty"`
	Data      *domain.Watchlist `json:"data,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// AddMemberRequest is the body of POST /watchlist/add.
type AddMemberRequest struct {
	Ticker      string `json:"ticker"`
	Name        string `json:"name,omitempty"`
	WatchlistID string `json:"watchlist_id,omitempty"`
}

// AddMemberResponse is the body returned by POST /watchlist/add.
type AddMemberResponse struct {
	Message       string                `json:"message"`
	WatchlistID   string                `json:"watchlist_id"`
	WatchlistName string                `json:"watchlist_name"`
	Ticker        string                `json:"ticker"`
	Item          *domain.WatchlistItem `json:"item,omitempty"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message   string                   `json:"message"`
	History   []domain.ChatTurn        `json:"history"`
	Watchlist *domain.WatchlistContext `json:"watchlist,omitempty"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the structured error payload. Older endpoints use
// "detail" instead of "error".
type ErrorResponse struct {
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}
