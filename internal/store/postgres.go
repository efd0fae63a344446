package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stonklytics/internal/domain"
)

var _ WatchlistStore = (*PostgresStore)(nil)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS watchlists (
	seq        BIGSERIAL PRIMARY KEY,
	id         UUID        NOT NULL UNIQUE,
	uid        TEXT        NOT NULL,
	name       TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_watchlists_uid ON watchlists(uid);
CREATE TABLE IF NOT EXISTS watchlist_items (
	seq          BIGSERIAL PRIMARY KEY,
	watchlist_id UUID        NOT NULL REFERENCES watchlists(id) ON DELETE CASCADE,
	symbol       TEXT        NOT NULL,
	name         TEXT        NOT NULL DEFAULT '',
	added_at     TIMESTAMPTZ NOT NULL,
	UNIQUE (watchlist_id, symbol)
);`

// PostgresStore implements WatchlistStore on a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects to connString and creates the schema if needed.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrating postgres: %w", err)
	}
	return &PostgresStore{db: pool}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) ListWatchlists(ctx context.Context, uid string) ([]domain.Watchlist, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id::text, name, created_at FROM watchlists WHERE uid = $1 ORDER BY seq DESC`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lists := []domain.Watchlist{}
	index := make(map[string]int)
	for rows.Next() {
		var w domain.Watchlist
		if err := rows.Scan(&w.ID, &w.Name, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.CreatedAt = w.CreatedAt.UTC()
		w.Items = []domain.WatchlistItem{}
		index[w.ID] = len(lists)
		lists = append(lists, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := s.db.Query(ctx, `
		SELECT i.watchlist_id::text, i.symbol, i.name, i.added_at
		FROM watchlist_items i JOIN watchlists w ON w.id = i.watchlist_id
		WHERE w.uid = $1
		ORDER BY i.seq`, uid)
	if err != nil {
		return nil, err
	}
	defer items.Close()
	for items.Next() {
		var (
			wid string
			it  domain.WatchlistItem
		)
		if err := items.Scan(&wid, &it.Ticker, &it.Name, &it.AddedAt); err != nil {
			return nil, err
		}
		it.AddedAt = it.AddedAt.UTC()
		if i, ok := index[wid]; ok {
			lists[i].Items = append(lists[i].Items, it)
		}
	}
	return lists, items.Err()
}

func (s *PostgresStore) CreateWatchlist(ctx context.Context, uid, name string) (*domain.Watchlist, error) {
	w := newWatchlist(name)
	_, err := s.db.Exec(ctx,
		`INSERT INTO watchlists (id, uid, name, created_at) VALUES ($1, $2, $3, $4)`,
		w.ID, uid, w.Name, w.CreatedAt)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (s *PostgresStore) DeleteWatchlist(ctx context.Context, uid, id string) error {
	if uuid.Validate(id) != nil {
		return ErrWatchlistNotFound
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM watchlists WHERE id = $1 AND uid = $2`, id, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWatchlistNotFound
	}
	return nil
}

func (s *PostgresStore) AddItem(ctx context.Context, uid, id string, item domain.WatchlistItem) (*AddResult, error) {
	if id != "" && uuid.Validate(id) != nil {
		return nil, ErrWatchlistNotFound
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	res := &AddResult{}
	if id == "" {
		err = tx.QueryRow(ctx,
			`SELECT id::text, name, created_at FROM watchlists WHERE uid = $1 ORDER BY seq DESC LIMIT 1`, uid).
			Scan(&res.Watchlist.ID, &res.Watchlist.Name, &res.Watchlist.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			w := newWatchlist(DefaultWatchlistName)
			if _, err := tx.Exec(ctx,
				`INSERT INTO watchlists (id, uid, name, created_at) VALUES ($1, $2, $3, $4)`,
				w.ID, uid, w.Name, w.CreatedAt); err != nil {
				return nil, err
			}
			res.Watchlist = *w
			res.Watchlist.Items = nil
			res.Created = true
			err = nil
		}
	} else {
		err = tx.QueryRow(ctx,
			`SELECT id::text, name, created_at FROM watchlists WHERE id = $1 AND uid = $2`, id, uid).
			Scan(&res.Watchlist.ID, &res.Watchlist.Name, &res.Watchlist.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWatchlistNotFound
		}
	}
	if err != nil {
		return nil, err
	}
	res.Watchlist.CreatedAt = res.Watchlist.CreatedAt.UTC()

	res.Item = domain.WatchlistItem{
		Ticker:  domain.NormalizeTicker(item.Ticker),
		Name:    item.Name,
		AddedAt: now(),
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO watchlist_items (watchlist_id, symbol, name, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (watchlist_id, symbol) DO NOTHING`,
		res.Watchlist.ID, res.Item.Ticker, res.Item.Name, res.Item.AddedAt)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrDuplicate
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *PostgresStore) RemoveItem(ctx context.Context, uid, symbol string) (string, error) {
	symbol = domain.NormalizeTicker(symbol)
	var id string
	err := s.db.QueryRow(ctx, `
		DELETE FROM watchlist_items
		WHERE seq = (
			SELECT i.seq FROM watchlist_items i JOIN watchlists w ON w.id = i.watchlist_id
			WHERE w.uid = $1 AND i.symbol = $2
			ORDER BY w.seq DESC LIMIT 1
		)
		RETURNING watchlist_id::text`, uid, symbol).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrItemNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) RemoveItemFrom(ctx context.Context, uid, id, symbol string) error {
	if uuid.Validate(id) != nil {
		return ErrWatchlistNotFound
	}
	symbol = domain.NormalizeTicker(symbol)
	var owned bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM watchlists WHERE id = $1 AND uid = $2)`, id, uid).Scan(&owned)
	if err != nil {
		return err
	}
	if !owned {
		return ErrWatchlistNotFound
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM watchlist_items WHERE watchlist_id = $1 AND symbol = $2`, id, symbol)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}
