package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"stonklytics/internal/domain"
	"stonklytics/internal/store"
	"stonklytics/pkg/stonklytics"
)

func (s *Server) handleListWatchlists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.watchlists.ListWatchlists(r.Context(), userID(r))
	if err != nil {
		s.writeStoreError(w, "listing watchlists", err)
		return
	}
	writeJSON(w, lists)
}

func (s *Server) handleCreateWatchlist(w http.ResponseWriter, r *http.Request) {
	var body createWatchlistBody
	if err := s.decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := store.DefaultWatchlistName
	if body.Name != nil {
		if *body.Name == "" {
			writeError(w, http.StatusBadRequest, fieldMessages["name"])
			return
		}
		name = *body.Name
	}

	wl, err := s.watchlists.CreateWatchlist(r.Context(), userID(r), name)
	if err != nil {
		s.writeStoreError(w, "creating watchlist", err)
		return
	}
	s.log.Info("watchlist created", "uid", userID(r), "id", wl.ID)
	writeJSONStatus(w, http.StatusCreated, stonklytics.CreateWatchlistResponse{
		Message:   "Watchlist created successfully",
		Watchlist: wl,
	})
}

func (s *Server) handleCreateWatchlistV2(w http.ResponseWriter, r *http.Request) {
	var body createWatchlistV2Body
	if err := s.decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	wl, err := s.watchlists.CreateWatchlist(r.Context(), userID(r), body.Name)
	if err != nil {
		s.writeStoreError(w, "creating watchlist", err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, createWatchlistV2Response{ID: wl.ID, Name: wl.Name})
}

func (s *Server) handleDeleteWatchlist(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.watchlists.DeleteWatchlist(r.Context(), userID(r), id); err != nil {
		s.writeStoreError(w, "deleting watchlist", err)
		return
	}
	s.log.Info("watchlist deleted", "uid", userID(r), "id", id)
	writeJSON(w, messageResponse{Message: "Watchlist deleted successfully"})
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var body addItemBody
	if err := s.decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ticker := domain.NormalizeTicker(body.Ticker)

	res, err := s.watchlists.AddItem(r.Context(), userID(r), body.WatchlistID,
		domain.WatchlistItem{Ticker: ticker, Name: body.Name})
	if err != nil {
		s.writeStoreError(w, "adding to watchlist", err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, stonklytics.AddMemberResponse{
		Message:       fmt.Sprintf("Added %s to watchlist", ticker),
		WatchlistID:   res.Watchlist.ID,
		WatchlistName: res.Watchlist.Name,
		Ticker:        ticker,
		Item:          &res.Item,
	})
}

// handleAddItemV2 ignores duplicates.
func (s *Server) handleAddItemV2(w http.ResponseWriter, r *http.Request) {
	var body addItemV2Body
	if err := s.decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := r.PathValue("id")
	_, err := s.watchlists.AddItem(r.Context(), userID(r), id,
		domain.WatchlistItem{Ticker: domain.NormalizeTicker(body.Symbol)})
	if err != nil && !errors.Is(err, store.ErrDuplicate) {
		s.writeStoreError(w, "adding to watchlist", err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, okResponse{OK: true})
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	ticker := domain.NormalizeTicker(r.PathValue("ticker"))
	if _, err := s.watchlists.RemoveItem(r.Context(), userID(r), ticker); err != nil {
		s.writeStoreError(w, "removing from watchlist", err)
		return
	}
	writeJSON(w, messageResponse{Message: fmt.Sprintf("Removed %s from watchlist", ticker)})
}

// handleRemoveItemFrom succeeds when the symbol is already absent.
func (s *Server) handleRemoveItemFrom(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	symbol := domain.NormalizeTicker(r.PathValue("symbol"))
	err := s.watchlists.RemoveItemFrom(r.Context(), userID(r), id, symbol)
	if err != nil && !errors.Is(err, store.ErrItemNotFound) {
		s.writeStoreError(w, "removing from watchlist", err)
		return
	}
	writeJSON(w, okResponse{OK: true})
}
