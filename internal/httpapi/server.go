// Package httpapi is the reference REST backend: watchlists, market data,
// summaries and chat under /api, authenticated with bearer tokens.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"stonklytics/internal/market"
	"stonklytics/internal/store"
)

// Server serves the backend HTTP API.
type Server struct {
	watchlists store.WatchlistStore
	market     *market.Service
	auth       *Authenticator
	validate   *validator.Validate
	log        *slog.Logger
	now        func() time.Time
}

// NewServer creates a Server. log may be nil.
func NewServer(ws store.WatchlistStore, ms *market.Service, auth *Authenticator, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		watchlists: ws,
		market:     ms,
		auth:       auth,
		validate:   newValidator(),
		log:        log,
		now:        time.Now,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Market data is public.
	mux.HandleFunc("GET /api/stock/search/{$}", s.handleSearch)
	mux.HandleFunc("GET /api/stock/data/{$}", s.handleSnapshot)
	mux.HandleFunc("GET /api/stock/data/historical/{$}", s.handleHistorical)
	mux.HandleFunc("GET /api/stock/financials/{$}", s.handleFinancials)
	mux.HandleFunc("GET /api/stock/news/{$}", s.handleNews)

	mux.HandleFunc("GET /api/market-news", s.auth.Require(s.handleMarketNews))
	mux.HandleFunc("GET /api/summary/{symbol}", s.auth.Require(s.handleSummary))
	mux.HandleFunc("POST /api/chat", s.auth.Require(s.handleChat))

	mux.HandleFunc("GET /api/watchlist", s.auth.Require(s.handleListWatchlists))
	mux.HandleFunc("POST /api/watchlist/create", s.auth.Require(s.handleCreateWatchlist))
	mux.HandleFunc("DELETE /api/watchlist/delete/{id}", s.auth.Require(s.handleDeleteWatchlist))
	mux.HandleFunc("POST /api/watchlist/add", s.auth.Require(s.handleAddItem))
	mux.HandleFunc("DELETE /api/watchlist/remove/{ticker}", s.auth.Require(s.handleRemoveItem))

	mux.HandleFunc("GET /api/watchlists", s.auth.Require(s.handleListWatchlists))
	mux.HandleFunc("POST /api/watchlists/create", s.auth.Require(s.handleCreateWatchlistV2))
	mux.HandleFunc("POST /api/watchlists/{id}/items", s.auth.Require(s.handleAddItemV2))
	mux.HandleFunc("DELETE /api/watchlists/{id}/items/{symbol}", s.auth.Require(s.handleRemoveItemFrom))
}

// Handler returns an http.Handler with logging and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logRequests(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start).Round(time.Microsecond),
		)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeStoreError maps watchlist store failures to HTTP errors.
func (s *Server) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrWatchlistNotFound):
		writeError(w, http.StatusNotFound, "Watchlist not found or access denied")
	case errors.Is(err, store.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "Stock not in watchlist")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusBadRequest, "Stock already in watchlist")
	default:
		s.log.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
