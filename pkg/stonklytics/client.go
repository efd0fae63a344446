// Package stonklytics is the Go SDK for the stonklytics REST backend. Each
// operation maps to one endpoint; failures come back as *domain.Error so
// callers can show the backend's message.
package stonklytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stonklytics/internal/domain"
	"stonklytics/internal/util"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultChatTimeout = 60 * time.Second
)

// TokenSource supplies the bearer token attached to each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client provides a Go SDK for interacting with the stonklytics API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	chatClient *http.Client
	tokens     TokenSource
	limiter    *util.RateLimiter
	log        *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithTimeout sets the timeout for every call except chat.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithChatTimeout sets the timeout for chat calls.
func WithChatTimeout(d time.Duration) Option {
	return func(c *Client) { c.chatClient.Timeout = d }
}

// WithTokenSource attaches bearer tokens from ts.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithRateLimiter paces outgoing requests.
func WithRateLimiter(rl *util.RateLimiter) Option {
	return func(c *Client) { c.limiter = rl }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a new stonklytics API client. baseURL includes the API
// prefix, e.g. "http://localhost:8000/api".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		chatClient: &http.Client{Timeout: DefaultChatTimeout},
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string { return c.baseURL }

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Search returns ticker suggestions in server order.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SearchSuggestion, error) {
	var resp SearchResponse
	q := url.Values{"q": {query}}
	if err := c.do(ctx, c.httpClient, http.MethodGet, "/stock/search/", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// GetSnapshot fetches the current snapshot for ticker.
func (c *Client) GetSnapshot(ctx context.Context, ticker string) (*domain.StockSnapshot, error) {
	var snap domain.StockSnapshot
	q := url.Values{"ticker": {domain.NormalizeTicker(ticker)}}
	if err := c.do(ctx, c.httpClient, http.MethodGet, "/stock/data/", q, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetHistorical returns daily prices for ticker within [from, to].
func (c *Client) GetHistorical(ctx context.Context, ticker string, from, to time.Time) ([]domain.PricePoint, error) {
	var resp HistoricalResponse
	q := url.Values{
		"ticker": {domain.NormalizeTicker(ticker)},
		"from":   {from.Format("2006-01-02")},
		"to":     {to.Format("2006-01-02")},
	}
	if err := c.do(ctx, c.httpClient, http.MethodGet, "/stock/data/historical/", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Prices, nil
}

// GetFinancials returns up to limit reports for the timeframe ("quarterly"
// or "annual").
func (c *Client) GetFinancials(ctx context.Context, ticker string, limit int, timeframe string) ([]domain.FinancialReport, error) {
	var resp FinancialsResponse
	q := url.Values{
		"ticker":    {domain.NormalizeTicker(ticker)},
		"limit":     {strconv.Itoa(limit)},
		"timeframe": {timeframe},
	}
	if err := c.do(ctx, c.httpClient, http.MethodGet, "/stock/financials/", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// GetNews returns up to limit recent articles for ticker.
func (c *Client) GetNews(ctx context.Context, ticker string, limit int) ([]domain.NewsArticle, error) {
	var resp NewsResponse
	q := url.Values{
		"ticker": {domain.NormalizeTicker(ticker)},
		"limit":  {strconv.Itoa(limit)},
	}
	if err := c.do(ctx, c.httpClient, http.MethodGet, "/stock/news/", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// GetMarketNews returns market-wide headlines.
func (c *Client) GetMarketNews(ctx context.Context) ([]domain.MarketNewsItem, error) {
	var resp MarketNewsResponse
	if err := c.do(ctx, c.httpClient, http.MethodGet, "/market-news", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.News, nil
}

// GetSummary returns a short outlook for ticker.
func (c *Client) GetSummary(ctx context.Context, ticker string) (*domain.Summary, error) {
	var s domain.Summary
	path := "/summary/" + url.PathEscape(domain.NormalizeTicker(ticker))
	if err := c.do(ctx, c.httpClient, http.MethodGet, path, nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ---------------------------------------------------------------------------
// Watchlists
// ---------------------------------------------------------------------------

// ListWatchlists returns the signed-in user's watchlists in server order.
func (c *Client) ListWatchlists(ctx context.Context) ([]domain.Watchlist, error) {
	var lists []domain.Watchlist
	if err := c.do(ctx, c.httpClient, http.MethodGet, "/watchlist", nil, nil, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

// CreateWatchlist creates a watchlist and returns it as stored.
func (c *Client) CreateWatchlist(ctx context.Context, name string) (*domain.Watchlist, error) {
	var resp CreateWatchlistResponse
	if err := c.do(ctx, c.httpClient, http.MethodPost, "/watchlist/create", nil, CreateWatchlistRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	if resp.Success != nil && !*resp.Success {
		return nil, domain.NewError(domain.KindUpstream, resp.Error)
	}
	w := resp.Watchlist
	if w == nil {
		w = resp.Data
	}
	if w == nil {
		return nil, domain.NewError(domain.KindUpstream, "Unexpected response from server")
	}
	return w, nil
}

// DeleteWatchlist deletes a watchlist and all of its items.
func (c *Client) DeleteWatchlist(ctx context.Context, id string) error {
	return c.do(ctx, c.httpClient, http.MethodDelete, "/watchlist/delete/"+url.PathEscape(id), nil, nil, nil)
}

// AddMember adds a ticker to a watchlist. An empty WatchlistID lets the
// backend pick its default watchlist.
func (c *Client) AddMember(ctx context.Context, req AddMemberRequest) (*domain.WatchlistItem, error) {
	req.Ticker = domain.NormalizeTicker(req.Ticker)
	var resp AddMemberResponse
	if err := c.do(ctx, c.httpClient, http.MethodPost, "/watchlist/add", nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.Item != nil {
		return resp.Item, nil
	}
	ticker := resp.Ticker
	if ticker == "" {
		ticker = req.Ticker
	}
	return &domain.WatchlistItem{Ticker: domain.NormalizeTicker(ticker), Name: req.Name}, nil
}

// RemoveMember removes ticker using the ticker-only endpoint. The backend
// decides which watchlist is affected.
func (c *Client) RemoveMember(ctx context.Context, ticker string) error {
	path := "/watchlist/remove/" + url.PathEscape(domain.NormalizeTicker(ticker))
	return c.do(ctx, c.httpClient, http.MethodDelete, path, nil, nil, nil)
}

// RemoveMemberFrom removes ticker from one specific watchlist.
func (c *Client) RemoveMemberFrom(ctx context.Context, watchlistID, ticker string) error {
	path := "/watchlists/" + url.PathEscape(watchlistID) + "/items/" + url.PathEscape(domain.NormalizeTicker(ticker))
	return c.do(ctx, c.httpClient, http.MethodDelete, path, nil, nil, nil)
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

// Chat sends one user message with the prior history and returns the
// assistant reply. It uses the longer chat timeout.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	var resp ChatResponse
	if err := c.do(ctx, c.chatClient, http.MethodPost, "/chat", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.WrapError(domain.KindNetwork, "Request cancelled", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok, err := c.tokens.Token(ctx); err == nil && tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.log.Debug("backend request failed", "method", method, "path", path, "error", err)
		return transportError(err)
	}
	defer resp.Body.Close()
	c.log.Debug("backend request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.WrapError(domain.KindUpstream, "Unexpected response from server", err)
	}
	return nil
}
