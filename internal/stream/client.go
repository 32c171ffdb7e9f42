package stream

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the deadline for writing a frame to the peer.
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong before dropping the peer;
	// pings go out at a fraction of it.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBufferSize bounds the per-client outbound queue. A client that
	// falls this far behind is dropped by the hub.
	sendBufferSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The dashboard is served cross-origin in development; the API's CORS
	// policy governs browser access, not the upgrader.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one websocket subscriber. The stream is push-only: inbound
// messages are read and discarded solely to process control frames.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	logger     *slog.Logger
}

// ServeWS upgrades an HTTP request to a websocket subscription, registers the
// client with the hub, and starts its read/write pumps. The snapshot argument
// primes the new client with the current window state before live batches.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, snapshot []byte) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	client := &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		remoteAddr: r.RemoteAddr,
		logger:     h.logger,
	}

	// Queue the priming snapshot before the client is registered so it is the
	// first frame on the wire.
	if len(snapshot) > 0 {
		client.send <- snapshot
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection to process close/ping/pong control frames
// and unregisters the client when the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("stream client read error", "error", err, "remote_addr", c.remoteAddr)
			}
			return
		}
	}
}

// writePump forwards queued frames to the peer and keeps the connection alive
// with periodic pings. A closed send channel means the hub dropped us.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
