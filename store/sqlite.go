package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/etnz/folio"
)

const schema = `
CREATE TABLE IF NOT EXISTS holdings (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT NOT NULL UNIQUE,
	user           TEXT NOT NULL,
	type           TEXT NOT NULL,
	asset_key      TEXT NOT NULL DEFAULT '',
	quantity       TEXT NOT NULL,
	purchased      TEXT NOT NULL,
	purchase_price REAL NOT NULL DEFAULT 0,
	note           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS holdings_user ON holdings(user);
`

// SQLite stores the holdings of all users in one database.
type SQLite struct {
	db *sql.DB
	n  notifier
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens or creates the database at path. ":memory:" opens a
// private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: writes are serialized and :memory: stays one database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

const columns = `id, type, asset_key, quantity, purchased, purchase_price, note`

type scanner interface {
	Scan(dest ...any) error
}

func scanHolding(row scanner) (folio.Holding, error) {
	var (
		h         folio.Holding
		typ, q, p string
	)
	if err := row.Scan(&h.ID, &typ, &h.AssetKey, &q, &p, &h.PurchasePrice, &h.Note); err != nil {
		return h, err
	}
	h.Type = folio.AssetType(typ)
	quantity, err := folio.ParseQuantity(q)
	if err != nil {
		return h, err
	}
	h.Quantity = quantity
	if h.Purchased, err = time.Parse(time.RFC3339Nano, p); err != nil {
		return h, fmt.Errorf("invalid purchase time of %s: %w", h.ID, err)
	}
	return h, nil
}

func (s *SQLite) list(ctx context.Context, user string) ([]folio.Holding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM holdings WHERE user = ? ORDER BY seq`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	holdings := []folio.Holding{}
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// notify publishes the holdings of user.
func (s *SQLite) notify(ctx context.Context, user string) {
	if holdings, err := s.list(ctx, user); err == nil {
		s.n.publish(user, holdings)
	}
}

func (s *SQLite) List(ctx context.Context, user string) ([]folio.Holding, error) {
	if err := checkUser(user); err != nil {
		return nil, err
	}
	return s.list(ctx, user)
}

func (s *SQLite) Get(ctx context.Context, user, id string) (folio.Holding, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM holdings WHERE user = ? AND id = ?`, user, id)
	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return h, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return h, err
}

func (s *SQLite) Add(ctx context.Context, user string, h folio.Holding) (folio.Holding, error) {
	if err := checkUser(user); err != nil {
		return h, err
	}
	h, err := prepare(h)
	if err != nil {
		return h, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO holdings (user, `+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user, h.ID, string(h.Type), h.AssetKey, h.Quantity.String(), h.Purchased.UTC().Format(time.RFC3339Nano), h.PurchasePrice, h.Note)
	if err != nil {
		return h, fmt.Errorf("cannot add holding: %w", err)
	}
	s.notify(ctx, user)
	return h, nil
}

// affected turns an update of no row into ErrNotFound.
func affected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return nil
}

func (s *SQLite) Update(ctx context.Context, user string, h folio.Holding) error {
	h = h.Normalize()
	if err := h.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE holdings SET type = ?, asset_key = ?, quantity = ?, purchased = ?, purchase_price = ?, note = ? WHERE user = ? AND id = ?`,
		string(h.Type), h.AssetKey, h.Quantity.String(), h.Purchased.UTC().Format(time.RFC3339Nano), h.PurchasePrice, h.Note, user, h.ID)
	if err != nil {
		return fmt.Errorf("cannot update holding: %w", err)
	}
	if err := affected(res, h.ID); err != nil {
		return err
	}
	s.notify(ctx, user)
	return nil
}

func (s *SQLite) Delete(ctx context.Context, user, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM holdings WHERE user = ? AND id = ?`, user, id)
	if err != nil {
		return fmt.Errorf("cannot delete holding: %w", err)
	}
	if err := affected(res, id); err != nil {
		return err
	}
	s.notify(ctx, user)
	return nil
}

func (s *SQLite) Reduce(ctx context.Context, user, id string, q folio.Quantity) (folio.Holding, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return folio.Holding{}, false, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+columns+` FROM holdings WHERE user = ? AND id = ?`, user, id)
	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return h, false, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return h, false, err
	}
	h, deleted, err := h.Reduce(q)
	if err != nil {
		return h, false, err
	}
	if deleted {
		_, err = tx.ExecContext(ctx, `DELETE FROM holdings WHERE id = ?`, id)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE holdings SET quantity = ? WHERE id = ?`, h.Quantity.String(), id)
	}
	if err != nil {
		return h, false, fmt.Errorf("cannot sell holding: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return h, false, err
	}
	s.notify(ctx, user)
	return h, deleted, nil
}

func (s *SQLite) Watch(user string) (<-chan []folio.Holding, func()) { return s.n.watch(user) }

func (s *SQLite) Close() error {
	s.n.close()
	return s.db.Close()
}
