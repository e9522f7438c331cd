package domain

import "time"

// EventData is the status-dependent payload of a StatusEvent. Each status
// that carries data has its own payload type, so an event cannot be built
// with fields that are invalid for its status.
type EventData interface {
	eventData()
}

// BuildingData accompanies BUILDING: the selected venue and its quoted price.
type BuildingData struct {
	Dex   string  `json:"dex"`
	Price float64 `json:"price"`
}

// ConfirmedData accompanies CONFIRMED: venue, executed price, and the
// settlement reference.
type ConfirmedData struct {
	Dex    string  `json:"dex"`
	Price  float64 `json:"price"`
	TxHash string  `json:"txHash"`
}

// FailedData accompanies FAILED: the error message recorded on the order.
type FailedData struct {
	Error string `json:"error"`
}

func (BuildingData) eventData()  {}
func (ConfirmedData) eventData() {}
func (FailedData) eventData()    {}

// StatusEvent is pushed to a subscribed client after every order transition.
// Events for a single order are delivered in pipeline order; nothing is
// replayed to late subscribers.
type StatusEvent struct {
	OrderID   string      `json:"orderId"`
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      EventData   `json:"data,omitempty"`
}

// NewStatusEvent stamps an event with the current time.
func NewStatusEvent(orderID string, status OrderStatus, data EventData) StatusEvent {
	return StatusEvent{
		OrderID:   orderID,
		Status:    status,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
