package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"solrouter/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ OrderStore = (*SQLiteStore)(nil)

const ordersSchema = `
CREATE TABLE IF NOT EXISTS orders (
	id             TEXT PRIMARY KEY,
	type           TEXT NOT NULL,
	token_in       TEXT NOT NULL,
	token_out      TEXT NOT NULL,
	amount_in      REAL NOT NULL,
	status         TEXT NOT NULL,
	dex            TEXT NOT NULL DEFAULT '',
	executed_price REAL NOT NULL DEFAULT 0,
	tx_hash        TEXT NOT NULL DEFAULT '',
	error          TEXT NOT NULL DEFAULT '',
	attempts       INTEGER NOT NULL DEFAULT 0,
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_created ON orders (created_at DESC);
`

// SQLiteStore implements OrderStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, prepares
// the schema, and returns a ready-to-use store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening order db: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(ordersSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing orders schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Insert stores a new order record.
func (s *SQLiteStore) Insert(ctx context.Context, order *domain.Order) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders
		 (id, type, token_in, token_out, amount_in, status, dex, executed_price,
		  tx_hash, error, attempts, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.Type, order.TokenIn, order.TokenOut, order.AmountIn,
		order.Status, order.Dex, order.ExecutedPrice, order.TxHash, order.Error,
		order.Attempts, order.CreatedAt.UnixMilli(), order.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting order %s: %w", order.ID, err)
	}
	return nil
}

// UpdateStatus sets the status and any carried fields in a single row
// update, so a CONFIRMED status is never visible without its venue, price
// and settlement reference.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, upd Update) error {
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{status, time.Now().UnixMilli()}

	if upd.Dex != "" {
		sets = append(sets, "dex = ?")
		args = append(args, upd.Dex)
	}
	if upd.ExecutedPrice != 0 {
		sets = append(sets, "executed_price = ?")
		args = append(args, upd.ExecutedPrice)
	}
	if upd.TxHash != "" {
		sets = append(sets, "tx_hash = ?")
		args = append(args, upd.TxHash)
	}
	if upd.Error != "" {
		sets = append(sets, "error = ?")
		args = append(args, upd.Error)
	}
	if upd.Attempts != 0 {
		sets = append(sets, "attempts = ?")
		args = append(args, upd.Attempts)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("updating order %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get retrieves a single order by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, token_in, token_out, amount_in, status, dex,
		        executed_price, tx_hash, error, attempts, created_at, updated_at
		 FROM orders WHERE id = ?`, id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading order %s: %w", id, err)
	}
	return order, nil
}

// ListRecent returns orders sorted by creation time descending.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]domain.Order, error) {
	query := `SELECT id, type, token_in, token_out, amount_in, status, dex,
	                 executed_price, tx_hash, error, attempts, created_at, updated_at
	          FROM orders ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// Counts returns the total number of orders and how many are non-terminal.
func (s *SQLiteStore) Counts(ctx context.Context) (total, active int, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status NOT IN (?, ?) THEN 1 ELSE 0 END), 0)
		 FROM orders`,
		domain.StatusConfirmed, domain.StatusFailed)
	if err := row.Scan(&total, &active); err != nil {
		return 0, 0, fmt.Errorf("counting orders: %w", err)
	}
	return total, active, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*domain.Order, error) {
	var o domain.Order
	var createdAt, updatedAt int64
	if err := row.Scan(
		&o.ID, &o.Type, &o.TokenIn, &o.TokenOut, &o.AmountIn, &o.Status, &o.Dex,
		&o.ExecutedPrice, &o.TxHash, &o.Error, &o.Attempts, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	o.CreatedAt = time.UnixMilli(createdAt).UTC()
	o.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &o, nil
}
