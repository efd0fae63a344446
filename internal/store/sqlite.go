package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"stonklytics/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

var _ WatchlistStore = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS watchlists (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT    NOT NULL UNIQUE,
	uid        TEXT    NOT NULL,
	name       TEXT    NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_watchlists_uid ON watchlists(uid);
CREATE TABLE IF NOT EXISTS watchlist_items (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	watchlist_id TEXT    NOT NULL REFERENCES watchlists(id) ON DELETE CASCADE,
	symbol       TEXT    NOT NULL,
	name         TEXT    NOT NULL DEFAULT '',
	added_at     INTEGER NOT NULL,
	UNIQUE (watchlist_id, symbol)
);`

// SQLiteStore implements WatchlistStore on a single SQLite file.
// Timestamps are stored as Unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and creates
// the schema if needed.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListWatchlists(ctx context.Context, uid string) ([]domain.Watchlist, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM watchlists WHERE uid = ? ORDER BY seq DESC`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lists := []domain.Watchlist{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			w  domain.Watchlist
			ms int64
		)
		if err := rows.Scan(&w.ID, &w.Name, &ms); err != nil {
			return nil, err
		}
		w.CreatedAt = time.UnixMilli(ms).UTC()
		w.Items = []domain.WatchlistItem{}
		index[w.ID] = len(lists)
		lists = append(lists, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := s.db.QueryContext(ctx, `
		SELECT i.watchlist_id, i.symbol, i.name, i.added_at
		FROM watchlist_items i JOIN watchlists w ON w.id = i.watchlist_id
		WHERE w.uid = ?
		ORDER BY i.seq`, uid)
	if err != nil {
		return nil, err
	}
	defer items.Close()
	for items.Next() {
		var (
			wid string
			it  domain.WatchlistItem
			ms  int64
		)
		if err := items.Scan(&wid, &it.Ticker, &it.Name, &ms); err != nil {
			return nil, err
		}
		it.AddedAt = time.UnixMilli(ms).UTC()
		if i, ok := index[wid]; ok {
			lists[i].Items = append(lists[i].Items, it)
		}
	}
	return lists, items.Err()
}

func (s *SQLiteStore) CreateWatchlist(ctx context.Context, uid, name string) (*domain.Watchlist, error) {
	return createSQLite(ctx, s.db, uid, name)
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func createSQLite(ctx context.Context, db sqlExecer, uid, name string) (*domain.Watchlist, error) {
	w := newWatchlist(name)
	_, err := db.ExecContext(ctx,
		`INSERT INTO watchlists (id, uid, name, created_at) VALUES (?, ?, ?, ?)`,
		w.ID, uid, w.Name, w.CreatedAt.UnixMilli())
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (s *SQLiteStore) DeleteWatchlist(ctx context.Context, uid, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM watchlists WHERE id = ? AND uid = ?`, id, uid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrWatchlistNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM watchlist_items WHERE watchlist_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) AddItem(ctx context.Context, uid, id string, item domain.WatchlistItem) (*AddResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res := &AddResult{}
	var ms int64
	if id == "" {
		err = tx.QueryRowContext(ctx,
			`SELECT id, name, created_at FROM watchlists WHERE uid = ? ORDER BY seq DESC LIMIT 1`, uid).
			Scan(&res.Watchlist.ID, &res.Watchlist.Name, &ms)
		if errors.Is(err, sql.ErrNoRows) {
			w, cerr := createSQLite(ctx, tx, uid, DefaultWatchlistName)
			if cerr != nil {
				return nil, cerr
			}
			res.Watchlist = *w
			res.Watchlist.Items = nil
			res.Created = true
			err = nil
		} else if err == nil {
			res.Watchlist.CreatedAt = time.UnixMilli(ms).UTC()
		}
	} else {
		err = tx.QueryRowContext(ctx,
			`SELECT id, name, created_at FROM watchlists WHERE id = ? AND uid = ?`, id, uid).
			Scan(&res.Watchlist.ID, &res.Watchlist.Name, &ms)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWatchlistNotFound
		}
		res.Watchlist.CreatedAt = time.UnixMilli(ms).UTC()
	}
	if err != nil {
		return nil, err
	}

	res.Item = domain.WatchlistItem{
		Ticker:  domain.NormalizeTicker(item.Ticker),
		Name:    item.Name,
		AddedAt: now(),
	}
	r, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO watchlist_items (watchlist_id, symbol, name, added_at) VALUES (?, ?, ?, ?)`,
		res.Watchlist.ID, res.Item.Ticker, res.Item.Name, res.Item.AddedAt.UnixMilli())
	if err != nil {
		return nil, err
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return nil, ErrDuplicate
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SQLiteStore) RemoveItem(ctx context.Context, uid, symbol string) (string, error) {
	symbol = domain.NormalizeTicker(symbol)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, `
		SELECT w.id FROM watchlists w JOIN watchlist_items i ON i.watchlist_id = w.id
		WHERE w.uid = ? AND i.symbol = ?
		ORDER BY w.seq DESC LIMIT 1`, uid, symbol).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrItemNotFound
	}
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM watchlist_items WHERE watchlist_id = ? AND symbol = ?`, id, symbol); err != nil {
		return "", err
	}
	return id, tx.Commit()
}

func (s *SQLiteStore) RemoveItemFrom(ctx context.Context, uid, id, symbol string) error {
	symbol = domain.NormalizeTicker(symbol)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRowContext(ctx, `SELECT uid FROM watchlists WHERE id = ?`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != uid) {
		return ErrWatchlistNotFound
	}
	if err != nil {
		return err
	}
	r, err := tx.ExecContext(ctx,
		`DELETE FROM watchlist_items WHERE watchlist_id = ? AND symbol = ?`, id, symbol)
	if err != nil {
		return err
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return ErrItemNotFound
	}
	return tx.Commit()
}
