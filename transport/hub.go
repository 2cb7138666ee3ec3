// Package transport carries events to and from clients over WebSocket.
//
// Hub is the ITransport the core talks to. Every connection owns a buffered
// send queue drained by its own write pump, so a slow client never blocks a
// broadcast: once its queue is full the connection is dropped.
package transport

import (
	"chat-hub/domain"
	"chat-hub/domain/event"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

var ErrConnectionGone = fmt.Errorf("connection gone")

type Options struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

func DefaultOptions() Options {
	return Options{
		SendBuffer:     256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 64 * 1024,
	}
}

type Hub struct {
	log     *slog.Logger
	opts    Options
	groups  *Groups
	mu      sync.RWMutex
	clients map[domain.ConnectionID]*Client
	wg      sync.WaitGroup
}

func NewHub(log *slog.Logger, opts Options) *Hub {
	return &Hub{
		log:     log,
		opts:    opts,
		groups:  NewGroups(),
		clients: make(map[domain.ConnectionID]*Client),
	}
}

// Run waits for ctx and then closes every connection. Read pumps report
// their disconnects as usual.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.closeAll()
	h.wg.Wait()
	h.log.Debug("Context done, transport hub stopped")
	return nil
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("Connection registered", "conn_id", c.id, "addr", c.addr, "connections", count)
}

// unregister closes the send queue once. It reports whether the connection was still known.
func (h *Hub) unregister(conn domain.ConnectionID) bool {
	h.mu.Lock()
	c, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.groups.Drop(conn)
		h.log.Debug("Connection unregistered", "conn_id", conn, "connections", count)
	}
	return ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) JoinGroup(_ context.Context, conn domain.ConnectionID, group domain.RoomKey) error {
	h.mu.RLock()
	_, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("join %s: %w", group, ErrConnectionGone)
	}
	h.groups.Join(conn, group)
	return nil
}

func (h *Hub) LeaveGroup(_ context.Context, conn domain.ConnectionID, group domain.RoomKey) error {
	h.groups.Leave(conn, group)
	return nil
}

func (h *Hub) SendToGroup(ctx context.Context, group domain.RoomKey, env event.Envelope, except ...domain.ConnectionID) error {
	return h.broadcast(ctx, env, h.groups.Members(group, except...))
}

func (h *Hub) SendToAll(ctx context.Context, env event.Envelope, except ...domain.ConnectionID) error {
	h.mu.RLock()
	targets := make([]domain.ConnectionID, 0, len(h.clients))
	for id := range h.clients {
		targets = append(targets, id)
	}
	h.mu.RUnlock()
	targets = lo.Without(targets, except...)
	return h.broadcast(ctx, env, targets)
}

func (h *Hub) SendToConnection(ctx context.Context, conn domain.ConnectionID, env event.Envelope) error {
	return h.broadcast(ctx, env, []domain.ConnectionID{conn})
}

// broadcast encodes once and enqueues to every target. Connections that
// can't keep up are dropped and reported in the returned error.
func (h *Hub) broadcast(ctx context.Context, env event.Envelope, targets []domain.ConnectionID) error {
	if len(targets) == 0 {
		return nil
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Event, err)
	}

	var failed []domain.ConnectionID
	for _, conn := range targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !h.enqueue(conn, payload) {
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		h.drop(conn)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%s not delivered to %d connection(s): %w", env.Event, len(failed), ErrConnectionGone)
	}
	return nil
}

// enqueue holds the read lock while sending so that unregister can't close
// the queue underneath it.
func (h *Hub) enqueue(conn domain.ConnectionID, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[conn]
	if !ok {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// drop closes the socket. The read pump notices and runs the normal disconnect path.
func (h *Hub) drop(conn domain.ConnectionID) {
	h.mu.RLock()
	c, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.log.Warn("Dropping slow connection", "conn_id", conn, "addr", c.addr)
	c.close()
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.close()
	}
	h.log.Info("Closed client connections", "count", len(clients))
}

func isExpectedCloseError(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure)
}
