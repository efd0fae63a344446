package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"stonklytics/internal/domain"
	"stonklytics/internal/market"
	"stonklytics/pkg/stonklytics"
)

const (
	msgTickerRequired = "Ticker symbol is required"
	msgBadDate        = "Invalid date, expected YYYY-MM-DD"
	dateLayout        = "2006-01-02"

	defaultHistoryDays = 30
	defaultNewsLimit   = 10
	maxNewsLimit       = 50
	defaultReports     = 4
	maxReports         = 20
)

// tickerParam returns the normalized ?ticker= value, writing 400 when it is
// missing.
func tickerParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	t := domain.NormalizeTicker(r.URL.Query().Get("ticker"))
	if t == "" {
		writeError(w, http.StatusBadRequest, msgTickerRequired)
		return "", false
	}
	return t, true
}

// intParam parses ?name= clamped to [1, hi], using def when absent.
func intParam(r *http.Request, name string, def, hi int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("Invalid %s", name)
	}
	if n < 1 {
		n = 1
	}
	if n > hi {
		n = hi
	}
	return n, nil
}

// writeMarketError maps provider failures to HTTP errors.
func (s *Server) writeMarketError(w http.ResponseWriter, ticker, fallback string, err error) {
	if errors.Is(err, market.ErrUnknownTicker) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No data found for ticker %s", ticker))
		return
	}
	s.log.Error(fallback, "ticker", ticker, "error", err)
	writeError(w, http.StatusBadGateway, fallback)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	results, err := s.market.Search(r.Context(), q)
	if err != nil {
		s.log.Error("search", "query", q, "error", err)
		writeError(w, http.StatusBadGateway, "Search failed")
		return
	}
	writeJSON(w, stonklytics.SearchResponse{Results: results})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ticker, ok := tickerParam(w, r)
	if !ok {
		return
	}
	snap, err := s.market.Snapshot(r.Context(), ticker)
	if err != nil {
		s.writeMarketError(w, ticker, "Failed to fetch stock data", err)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleHistorical(w http.ResponseWriter, r *http.Request) {
	ticker, ok := tickerParam(w, r)
	if !ok {
		return
	}
	to := s.now().UTC()
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, msgBadDate)
			return
		}
		to = t
	}
	from := to.AddDate(0, 0, -defaultHistoryDays)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, msgBadDate)
			return
		}
		from = t
	}
	if from.After(to) {
		writeError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	prices, err := s.market.Historical(r.Context(), ticker, from, to)
	if err != nil {
		s.writeMarketError(w, ticker, "Failed to fetch historical data", err)
		return
	}
	writeJSON(w, stonklytics.HistoricalResponse{Ticker: ticker, Prices: prices})
}

func (s *Server) handleFinancials(w http.ResponseWriter, r *http.Request) {
	ticker, ok := tickerParam(w, r)
	if !ok {
		return
	}
	limit, err := intParam(r, "limit", defaultReports, maxReports)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	timeframe := r.URL.Query().Get("timeframe")
	switch timeframe {
	case "":
		timeframe = "quarterly"
	case "quarterly", "annual":
	default:
		writeError(w, http.StatusBadRequest, "timeframe must be quarterly or annual")
		return
	}

	reports, err := s.market.Financials(r.Context(), ticker, limit, timeframe)
	if err != nil {
		s.writeMarketError(w, ticker, "Failed to fetch financials", err)
		return
	}
	writeJSON(w, stonklytics.FinancialsResponse{Results: reports})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	ticker, ok := tickerParam(w, r)
	if !ok {
		return
	}
	limit, err := intParam(r, "limit", defaultNewsLimit, maxNewsLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	news, err := s.market.News(r.Context(), ticker, limit)
	if err != nil {
		s.writeMarketError(w, ticker, "Failed to fetch news", err)
		return
	}
	if news == nil {
		news = []domain.NewsArticle{}
	}
	writeJSON(w, stonklytics.NewsResponse{Results: news})
}

func (s *Server) handleMarketNews(w http.ResponseWriter, r *http.Request) {
	mn, err := s.market.MarketNews(r.Context())
	if err != nil {
		s.log.Error("market news", "error", err)
		writeError(w, http.StatusBadGateway, "Failed to fetch market news")
		return
	}
	items := mn.Items
	if items == nil {
		items = []domain.MarketNewsItem{}
	}
	writeJSON(w, stonklytics.MarketNewsResponse{News: items, GeneratedAt: mn.GeneratedAt, Source: mn.Source})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	symbol := domain.NormalizeTicker(r.PathValue("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, msgTickerRequired)
		return
	}
	writeJSON(w, s.market.Summary(r.Context(), symbol))
}
