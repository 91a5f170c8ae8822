package liveserver

import (
	"context"
	"sync"

	"cartsync/internal/core"
)

const clientBuffer = 64

// Client is one feed subscriber
type Client struct {
	id     string
	send   chan Message
	mu     sync.Mutex
	closed bool
}

// NewClient creates a new client
func NewClient(id string) *Client {
	return &Client{
		id:   id,
		send: make(chan Message, clientBuffer),
	}
}

// ID returns the client identifier
func (c *Client) ID() string {
	return c.id
}

// Send queues msg without blocking. It returns false when the client is
// closed or too slow to keep up.
func (c *Client) Send(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// GetSendChan returns the send channel for reading
func (c *Client) GetSendChan() <-chan Message {
	return c.send
}

// Close closes the client. It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub fans messages out to every registered client. The latest message of
// each type is kept and replayed to clients as they register, so a new
// subscriber starts from the current cart instead of waiting for a change.
type Hub struct {
	clients    map[*Client]struct{}
	latest     map[string]Message
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     core.ILogger
}

// NewHub creates a new Hub. logger may be nil.
func NewHub(logger core.ILogger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		latest:     make(map[string]Message),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	if logger != nil {
		h.logger = logger.WithField("component", "live_hub")
	}
	return h
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			n := len(h.clients)
			replay := make([]Message, 0, len(h.latest))
			for _, msg := range h.latest {
				replay = append(replay, msg)
			}
			h.mu.Unlock()

			for _, msg := range replay {
				client.Send(msg)
			}
			h.debug("Client registered", "client_id", client.id, "total_clients", n)

		case client := <-h.unregister:
			h.drop(client)

		case msg := <-h.broadcast:
			h.mu.Lock()
			h.latest[msg.Type] = msg
			targets := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				targets = append(targets, client)
			}
			h.mu.Unlock()

			for _, client := range targets {
				if !client.Send(msg) {
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		client.Close()
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.debug("Client unregistered", "client_id", client.id, "total_clients", n)
	}
}

func (h *Hub) debug(msg string, fields ...interface{}) {
	if h.logger != nil {
		h.logger.Debug(msg, fields...)
	}
}

// Register registers a client. After Run has returned the client is closed
// instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister unregisters a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.Close()
	}
}

// Broadcast queues msg for every client, dropping it when the hub is
// backed up
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		if h.logger != nil {
			h.logger.Warn("Broadcast channel full, dropping message", "type", msg.Type)
		}
	}
}

// ClientCount returns the current number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
