package transport

import (
	"chat-hub/domain"
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests and starts the pumps of the new connection.
type Handler struct {
	ctx      context.Context
	hub      *Hub
	methods  Methods
	upgrader websocket.Upgrader
}

// NewHandler binds connections to ctx: hub methods invoked from a connection
// see ctx, not the request's.
func NewHandler(ctx context.Context, hub *Hub, methods Methods, checkOrigin func(r *http.Request) bool) *Handler {
	return &Handler{
		ctx:     ctx,
		hub:     hub,
		methods: methods,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.log.Debug("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(domain.ConnectionID(uuid.NewString()), conn, h.hub, h.methods, r.RemoteAddr)
	h.hub.register(client)

	h.hub.wg.Add(2)
	go func() {
		defer h.hub.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.hub.wg.Done()
		client.readPump(h.ctx)
	}()
}
