// Package hub fans messages out to connected websocket clients.
package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Conn is the subset of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

const sendBuffer = 32

// Client is one subscribed dashboard connection.
type Client struct {
	ID   string
	conn Conn
	send chan []byte
	once sync.Once
}

// Send queues a message for this client only. It reports false when the
// client's buffer is full, in which case the client is considered stalled.
func (c *Client) Send(message []byte) bool {
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// writePump drains the send queue onto the connection. One writer per
// connection, as the websocket package requires.
func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// Hub tracks active clients and broadcasts to all of them. Slow clients are
// dropped rather than allowed to stall the rest.
type Hub struct {
	log *zap.SugaredLogger

	mu      sync.Mutex
	clients map[*Client]struct{}
}

// New constructs an empty hub.
func New(log *zap.SugaredLogger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*Client]struct{}),
	}
}

// Add registers a connection and starts its writer.
func (h *Hub) Add(conn Conn) *Client {
	client := &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	go client.writePump()

	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Infow("websocket client connected", "client_id", client.ID, "total", count)
	return client
}

// Remove unregisters a client and closes its queue.
func (h *Hub) Remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		client.close()
		h.log.Infow("websocket client disconnected", "client_id", client.ID, "total", count)
	}
}

// Broadcast sends a message to every client, dropping any whose queue is
// full.
func (h *Hub) Broadcast(message []byte) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if !c.Send(message) {
			h.log.Warnw("dropping stalled websocket client", "client_id", c.ID)
			h.Remove(c)
		}
	}
}

// Count returns the number of active clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close drops every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
