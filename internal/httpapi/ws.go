package httpapi

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The REST surface is already open to any origin; the stream matches it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts a gorilla websocket connection to the hub's Conn interface.
// Gorilla permits one concurrent writer, so Send serializes writes.
type wsConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
	once    sync.Once
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

func (c *wsConn) IsOpen() bool {
	return !c.closed.Load()
}

func (c *wsConn) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		err = c.ws.Close()
	})
	return err
}

// handleOrderStream upgrades the request and registers the connection for
// the order id in the path. Events are pushed by the hub; the read loop
// exists only to notice the client going away.
func (s *Server) handleOrderStream(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "order", orderID, "error", err)
		return
	}

	conn := newWSConn(ws)
	s.hub.Register(orderID, conn)
	s.log.Debug("order stream opened", "order", orderID)

	go s.readLoop(orderID, conn)
}

// readLoop drains inbound frames until the connection errors, then tears the
// registration down. Clients are not expected to send anything.
func (s *Server) readLoop(orderID string, conn *wsConn) {
	for {
		if _, _, err := conn.ws.ReadMessage(); err != nil {
			break
		}
	}
	conn.closed.Store(true)
	s.hub.UnregisterConn(orderID, conn)
	conn.Close()
	s.log.Debug("order stream closed", "order", orderID)
}
