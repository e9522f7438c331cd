// Package hub maps order ids to live outbound client connections and
// delivers status events to them, best-effort and at-most-once.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"solrouter/internal/domain"
)

// Conn is the capability the hub needs from a transport connection. Any
// transport implementation satisfying it is substitutable.
type Conn interface {
	IsOpen() bool
	Send(data []byte) error
	Close() error
}

// Hub holds at most one live connection per order id. Delivery is
// best-effort: events for unregistered, closed, or failing connections are
// silently dropped and never queued for later.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]Conn
	log   *slog.Logger
}

// New creates an empty Hub.
func New(log *slog.Logger) *Hub {
	return &Hub{
		conns: make(map[string]Conn),
		log:   log,
	}
}

// Register stores the connection for an order id, replacing any previous
// registration (last writer wins). The replaced connection is not closed;
// its owner remains responsible for it.
func (h *Hub) Register(orderID string, conn Conn) {
	h.mu.Lock()
	h.conns[orderID] = conn
	h.mu.Unlock()

	h.log.Debug("client registered", "order", orderID)
}

// Unregister removes the mapping for an order id, if any.
func (h *Hub) Unregister(orderID string) {
	h.mu.Lock()
	delete(h.conns, orderID)
	h.mu.Unlock()
}

// UnregisterConn removes the mapping only while conn is still the registered
// connection, so a replaced connection's teardown cannot evict its successor.
func (h *Hub) UnregisterConn(orderID string, conn Conn) {
	h.mu.Lock()
	if h.conns[orderID] == conn {
		delete(h.conns, orderID)
	}
	h.mu.Unlock()
}

// CloseConnection closes the registered connection for an order id, if
// present, and removes the mapping. The close operation is invoked exactly
// once per held connection.
func (h *Hub) CloseConnection(orderID string) {
	h.mu.Lock()
	conn, ok := h.conns[orderID]
	delete(h.conns, orderID)
	h.mu.Unlock()

	if !ok {
		return
	}
	if err := conn.Close(); err != nil {
		h.log.Debug("closing client connection", "order", orderID, "error", err)
	}
}

// SendUpdate serializes the event and sends it to the connection registered
// for the event's order id. It is a no-op when no open connection is
// registered, and send failures never propagate: a disconnected client must
// not affect the pipeline.
func (h *Hub) SendUpdate(orderID string, event domain.StatusEvent) {
	h.mu.RLock()
	conn, ok := h.conns[orderID]
	h.mu.RUnlock()

	if !ok || !conn.IsOpen() {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("marshalling status event", "order", orderID, "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		h.log.Debug("status push failed", "order", orderID, "status", event.Status, "error", err)
	}
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
