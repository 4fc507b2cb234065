// Package ws pushes live meter and telemetry updates to dashboard clients
// over WebSockets.
package ws

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/epheterson/energy-dashboard/internal/metrics"
)

// Client represents a connected WebSocket client.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub manages WebSocket clients and broadcasts messages. It remembers the
// most recent message of each type so new clients catch up on connect.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string][]byte // keyed by envelope type
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string][]byte),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	metrics.SetWSClients(len(h.clients))

	// Catch the new client up on the latest state.
	for _, msg := range h.latest {
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	metrics.SetWSClients(len(h.clients))
}

// Broadcast sends a message to all connected clients and remembers it as
// the latest of its type for catch-up.
func (h *Hub) Broadcast(msgType string, msg []byte) {
	h.mu.Lock()
	h.latest[msgType] = msg
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Client buffer full, skip
			log.Printf("client buffer full, dropping message")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
