// Package domain defines the core types of the order router: orders and
// their lifecycle, venue quotes, execution results, and the status events
// pushed to subscribed clients.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidOrder is returned for submissions that fail validation. The
// message is part of the submission API contract.
var ErrInvalidOrder = errors.New("Invalid order parameters")

// ErrInvalidTransition is returned when an order is asked to move backwards
// or out of a terminal status.
var ErrInvalidTransition = errors.New("invalid order status transition")

// OrderType identifies how an order is to be executed. Only immediate
// execution ("market") is supported.
type OrderType string

// OrderTypeMarket executes immediately at the best available price.
const OrderTypeMarket OrderType = "market"

// OrderStatus is the lifecycle state of an order. Orders move strictly
// forward: PENDING → ROUTING → BUILDING → SUBMITTED → CONFIRMED, with FAILED
// reachable from any non-terminal status.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusRouting   OrderStatus = "ROUTING"
	StatusBuilding  OrderStatus = "BUILDING"
	StatusSubmitted OrderStatus = "SUBMITTED"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusFailed    OrderStatus = "FAILED"
)

// statusRank orders the success path for forward-only transition checks.
var statusRank = map[OrderStatus]int{
	StatusPending:   0,
	StatusRouting:   1,
	StatusBuilding:  2,
	StatusSubmitted: 3,
	StatusConfirmed: 4,
}

// Terminal reports whether the status ends an order's lifecycle.
func (s OrderStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// CanTransition reports whether an order may move from one status to the
// next. Any non-terminal status may fail. PENDING → PENDING is permitted
// because a retried job re-enters the pipeline at PENDING.
func CanTransition(from, to OrderStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	if from == StatusPending && to == StatusPending {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank == fromRank+1
}

// Order is the unit of work tracked through the pipeline. It is created by
// the submission surface, owned exclusively by the pipeline from enqueue to
// terminal status, and persisted at every transition.
type Order struct {
	ID            string      `json:"id"`
	Type          OrderType   `json:"type"`
	TokenIn       string      `json:"tokenIn"`
	TokenOut      string      `json:"tokenOut"`
	AmountIn      float64     `json:"amountIn"`
	Status        OrderStatus `json:"status"`
	Dex           string      `json:"dex,omitempty"`
	ExecutedPrice float64     `json:"executedPrice,omitempty"`
	TxHash        string      `json:"txHash,omitempty"`
	Error         string      `json:"error,omitempty"`
	Attempts      int         `json:"attempts"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// NewOrder validates the submission parameters and mints a new PENDING order
// with a unique id. It returns ErrInvalidOrder if the type is unsupported,
// either symbol is empty, the symbols are identical, or the amount is not
// positive.
func NewOrder(typ OrderType, tokenIn, tokenOut string, amountIn float64) (*Order, error) {
	if typ != OrderTypeMarket {
		return nil, ErrInvalidOrder
	}
	if tokenIn == "" || tokenOut == "" || tokenIn == tokenOut {
		return nil, ErrInvalidOrder
	}
	if amountIn <= 0 {
		return nil, ErrInvalidOrder
	}

	now := time.Now().UTC()
	return &Order{
		ID:        uuid.NewString(),
		Type:      typ,
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  amountIn,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Transition moves the order to the given status, enforcing the forward-only
// state machine.
func (o *Order) Transition(to OrderStatus) error {
	if !CanTransition(o.Status, to) {
		return ErrInvalidTransition
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return nil
}
