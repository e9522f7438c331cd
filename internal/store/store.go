// Package store defines the persistence interface for order records and
// provides the SQLite implementation and the Parquet archive used for
// exporting completed history.
package store

import (
	"context"
	"errors"

	"solrouter/internal/domain"
)

// ErrNotFound is returned when no order exists for the requested id.
var ErrNotFound = errors.New("order not found")

// Update carries the optional fields persisted together with a status
// change. Zero values mean "leave unchanged".
type Update struct {
	Dex           string
	ExecutedPrice float64
	TxHash        string
	Error         string
	Attempts      int
}

// OrderStore persists and retrieves order records. Implementations must be
// safe for concurrent use: updates are single-row, keyed by order id, and
// independent across orders.
type OrderStore interface {
	// Insert stores a new order record.
	Insert(ctx context.Context, order *domain.Order) error

	// UpdateStatus sets the order's status and any carried fields
	// atomically in one row update.
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, upd Update) error

	// Get retrieves a single order by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Order, error)

	// ListRecent returns orders sorted by creation time descending. A
	// non-positive limit returns all orders.
	ListRecent(ctx context.Context, limit int) ([]domain.Order, error)

	// Counts returns the total number of orders and how many are still in a
	// non-terminal status.
	Counts(ctx context.Context) (total, active int, err error)
}
