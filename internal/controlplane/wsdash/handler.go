package wsdash

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP requests to dashboard WebSocket connections.
type Handler struct {
	hub *Hub
	log zerolog.Logger
}

// NewHandler constructs a Handler bound to hub.
func NewHandler(hub *Hub, log zerolog.Logger) *Handler {
	return &Handler{hub: hub, log: log.With().Str("component", "wsdash").Logger()}
}

// ServeWS upgrades the request and registers the resulting client with
// the hub.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to upgrade dashboard WebSocket connection")
		return
	}

	c := NewClient(h.hub, conn, h.log)
	h.hub.Register(c)

	go c.WritePump()
	go c.ReadPump()

	h.log.Info().Str("client_id", c.ID).Str("remote_addr", r.RemoteAddr).Msg("dashboard client connected")
}
