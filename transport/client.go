package transport

import (
	"chat-hub/domain"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is one WebSocket connection. The read pump is the only reader and
// the write pump the only writer of conn.
type Client struct {
	id        domain.ConnectionID
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	methods   Methods
	addr      string
	log       *slog.Logger
	closeOnce sync.Once
}

func newClient(id domain.ConnectionID, conn *websocket.Conn, hub *Hub, methods Methods, addr string) *Client {
	conn.SetReadLimit(hub.opts.MaxMessageSize)
	return &Client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, hub.opts.SendBuffer),
		hub:     hub,
		methods: methods,
		addr:    addr,
		log:     hub.log.With("conn_id", id),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug("Error closing connection", "error", err)
		}
	})
}

// readPump decodes frames and hands them to the hub methods until the
// connection fails, then runs the disconnect path exactly once.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c.id)
		c.methods.Disconnect(context.WithoutCancel(ctx), c.id)
		c.close()
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait)); err != nil {
		c.log.Debug("Error setting read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	})

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if c.isFatal(err) {
				return
			}
			c.reject(ctx, "malformed frame")
			continue
		}
		route(ctx, c.methods, c.id, frame, c.reject)
	}
}

// isFatal reports whether the read loop has to stop. A frame that doesn't
// decode leaves the connection usable.
func (c *Client) isFatal(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &syntaxErr), stderrors.As(err, &typeErr), stderrors.Is(err, io.ErrUnexpectedEOF):
		c.log.Debug("Undecodable frame", "error", err)
		return false
	case stderrors.Is(err, websocket.ErrReadLimit):
		c.log.Info("Frame exceeded maximum size", "max", c.hub.opts.MaxMessageSize)
		return true
	case isExpectedCloseError(err), stderrors.Is(err, io.EOF):
		c.log.Debug("Connection closed", "addr", c.addr, "error", err)
		return true
	case websocket.IsUnexpectedCloseError(err):
		c.log.Warn("Unexpected close", "addr", c.addr, "error", err)
		return true
	default:
		c.log.Debug("Read error", "addr", c.addr, "error", err)
		return true
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("Write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) reject(ctx context.Context, reason string) {
	if err := c.hub.SendToConnection(ctx, c.id, rejection(reason)); err != nil {
		c.log.Debug("Rejection not delivered", "error", err)
	}
}
