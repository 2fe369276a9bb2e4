// Package wsdash broadcasts control-plane events to connected dashboard
// clients over WebSocket, mirroring the shape of the teacher repo's
// api/websocket hub/client split.
package wsdash

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/maumercado/hce-go/internal/controlplane/events"
	"github.com/maumercado/hce-go/internal/metrics"
)

// Hub fans out events to every registered Client, unregistering a client
// whose send buffer is full rather than blocking the broadcaster.
type Hub struct {
	log zerolog.Logger

	clients    map[*Client]bool
	broadcast  chan *events.Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewHub constructs a Hub. Call Run on a dedicated goroutine to start it.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:        log.With().Str("component", "wsdash").Logger(),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *events.Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopCh:     make(chan struct{}),
	}
}

// Run drives the hub's register/unregister/broadcast loop until Stop is
// called.
func (h *Hub) Run() {
	h.wg.Add(1)
	defer h.wg.Done()
	for {
		select {
		case <-h.stopCh:
			h.closeAllClients()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			metrics.SetWebSocketConnections(float64(h.ClientCount()))
			h.log.Debug().Str("client_id", c.ID).Msg("dashboard client registered")
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			metrics.SetWebSocketConnections(float64(h.ClientCount()))
			h.log.Debug().Str("client_id", c.ID).Msg("dashboard client unregistered")
		case ev := <-h.broadcast:
			h.broadcastEvent(ev)
		}
	}
}

// Stop halts the hub and closes every connected client.
func (h *Hub) Stop() {
	close(h.stopCh)
	h.wg.Wait()
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Broadcast queues an event for delivery to every connected client.
func (h *Hub) Broadcast(ev *events.Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn().Msg("broadcast channel full, dropping event")
	}
}

// ClientCount returns the number of currently connected dashboard
// clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcastEvent(ev *events.Event) {
	data, err := ev.ToJSON()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to serialize event for broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
			metrics.RecordWebSocketMessage(string(ev.Type))
		default:
			go func(c *Client) { h.unregister <- c }(c)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}
