// Package store persists watchlists for the reference backend and archives
// market data (daily bars and news) as Parquet files.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stonklytics/internal/config"
	"stonklytics/internal/domain"
)

// DefaultWatchlistName is used when a watchlist is created implicitly.
const DefaultWatchlistName = "My Watchlist"

var (
	ErrWatchlistNotFound = errors.New("watchlist not found")
	ErrItemNotFound      = errors.New("item not in watchlist")
	ErrDuplicate         = errors.New("item already in watchlist")
)

// AddResult describes a successful AddItem.
type AddResult struct {
	// Watchlist is the target list without its items.
	Watchlist domain.Watchlist
	Item      domain.WatchlistItem
	// Created is set when the default watchlist had to be created.
	Created bool
}

// WatchlistStore persists per-user watchlists. Every method is scoped to uid;
// a watchlist owned by someone else behaves as if it did not exist.
type WatchlistStore interface {
	// ListWatchlists returns the user's watchlists newest first, each with
	// its items in insertion order.
	ListWatchlists(ctx context.Context, uid string) ([]domain.Watchlist, error)

	// CreateWatchlist creates an empty watchlist.
	CreateWatchlist(ctx context.Context, uid, name string) (*domain.Watchlist, error)

	// DeleteWatchlist removes a watchlist and its items.
	DeleteWatchlist(ctx context.Context, uid, id string) error

	// AddItem adds item to watchlist id. An empty id targets the user's first
	// watchlist, creating DefaultWatchlistName when there is none.
	AddItem(ctx context.Context, uid, id string, item domain.WatchlistItem) (*AddResult, error)

	// RemoveItem removes symbol from the first watchlist holding it and
	// returns that watchlist's id.
	RemoveItem(ctx context.Context, uid, symbol string) (string, error)

	// RemoveItemFrom removes symbol from watchlist id.
	RemoveItemFrom(ctx context.Context, uid, id, symbol string) error

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Open returns the watchlist store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Storage) (WatchlistStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "postgres":
		return NewPostgresStore(ctx, cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func newWatchlist(name string) *domain.Watchlist {
	return &domain.Watchlist{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now(),
		Items:     []domain.WatchlistItem{},
	}
}

// now is the store clock, truncated to what both databases round-trip.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
