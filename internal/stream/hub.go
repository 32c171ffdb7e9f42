// Package stream fans merged telemetry batches out to connected renderer
// clients over websockets. The hub is the engine's BatchSink: every non-empty
// merge is pushed as one message, so a renderer never needs to poll while the
// engine is running.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"livedash/internal/types"
)

// messageType values for the envelope pushed to clients.
const (
	msgTypeBatch    = "batch"
	msgTypeSnapshot = "snapshot"
)

// envelope is the wire frame for every hub message.
type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub maintains the set of active clients and broadcasts merged batches to
// them. Registration, unregistration, and broadcast are serialized through
// channels in a single Run loop.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu      sync.RWMutex
	clients map[*Client]struct{}

	logger *slog.Logger
}

// NewHub creates a Hub. Call Run to start serving; the hub drops broadcasts
// until then rather than blocking the engine.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
		clients:    make(map[*Client]struct{}),
		logger:     logger,
	}
}

// Run serves the hub loop until the context is cancelled, then closes every
// remaining client connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("stream client registered", "remote_addr", client.remoteAddr)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("stream client unregistered", "remote_addr", client.remoteAddr)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer: drop the client rather than stall the
					// broadcast path.
					h.logger.Warn("stream client send buffer full, dropping",
						"remote_addr", client.remoteAddr,
					)
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// PublishBatch implements engine.BatchSink: each merged batch becomes one
// broadcast frame. If the hub loop is saturated the frame is dropped; the
// live stream is best-effort visibility, not guaranteed delivery.
func (h *Hub) PublishBatch(batch types.Batch) {
	h.publish(msgTypeBatch, batch)
}

// PublishSnapshot pushes a full window snapshot, used to prime a client that
// has just connected.
func (h *Hub) PublishSnapshot(snap types.Snapshot) {
	h.publish(msgTypeSnapshot, snap)
}

func (h *Hub) publish(msgType string, payload any) {
	frame, err := json.Marshal(envelope{Type: msgType, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal stream frame", "type", msgType, "error", err)
		return
	}

	select {
	case h.broadcast <- frame:
	default:
		h.logger.Warn("stream broadcast buffer full, dropping frame", "type", msgType)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}
