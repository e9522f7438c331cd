// Package httpapi exposes the order router over HTTP: a REST surface for
// submitting and querying orders, admin endpoints for the queue, and a
// WebSocket endpoint streaming per-order status events.
package httpapi

import "solrouter/internal/domain"

// SubmitRequest is the body of POST /api/orders.
type SubmitRequest struct {
	Type     domain.OrderType `json:"type"`
	TokenIn  string           `json:"tokenIn"`
	TokenOut string           `json:"tokenOut"`
	AmountIn float64          `json:"amountIn"`
}

// SubmitResponse acknowledges an accepted order with the id and the
// WebSocket path for status updates.
type SubmitResponse struct {
	OrderID   string             `json:"orderId"`
	Status    domain.OrderStatus `json:"status"`
	WebSocket string             `json:"websocket"`
}

// OrdersResponse lists orders newest-first.
type OrdersResponse struct {
	Orders []domain.Order `json:"orders"`
	Count  int            `json:"count"`
}

// ArchiveResponse reports how many orders an archive run exported.
type ArchiveResponse struct {
	Archived int `json:"archived"`
}
