package runtime

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Dispatcher broadcasts events to the Transport on behalf of other operations.
//
// It provides best-effort delivery: a send that fails, panics or exceeds the
// send timeout is logged and dropped. Nothing is ever returned to the caller,
// so a persisted write can't be "un-sent" because notification failed.
//
// Dispatcher is safe for concurrent use by multiple goroutines.
type Dispatcher struct {
	log         *slog.Logger
	transport   contract.ITransport
	sendTimeout time.Duration
	failures    atomic.Uint64
}

func NewDispatcher(log *slog.Logger, transport contract.ITransport, sendTimeout time.Duration) *Dispatcher {
	return &Dispatcher{log: log, transport: transport, sendTimeout: sendTimeout}
}

func (d *Dispatcher) ToRoom(ctx context.Context, room domain.RoomKey, env event.Envelope) {
	d.send(ctx, env, "room", room.String(), func(ctx context.Context) error {
		return d.transport.SendToGroup(ctx, room, env)
	})
}

func (d *Dispatcher) ToAllExcept(ctx context.Context, room domain.RoomKey, exclude domain.ConnectionID, env event.Envelope) {
	d.send(ctx, env, "room", room.String(), func(ctx context.Context) error {
		return d.transport.SendToGroup(ctx, room, env, exclude)
	})
}

func (d *Dispatcher) ToAll(ctx context.Context, env event.Envelope) {
	d.send(ctx, env, "target", "all", func(ctx context.Context) error {
		return d.transport.SendToAll(ctx, env)
	})
}

func (d *Dispatcher) ToConnection(ctx context.Context, conn domain.ConnectionID, env event.Envelope) {
	d.send(ctx, env, "conn_id", string(conn), func(ctx context.Context) error {
		return d.transport.SendToConnection(ctx, conn, env)
	})
}

// Failures is the number of sends dropped so far.
func (d *Dispatcher) Failures() uint64 {
	return d.failures.Load()
}

// send detaches from the caller's cancellation: a client going away must not
// abort a notification that was already triggered.
func (d *Dispatcher) send(ctx context.Context, env event.Envelope, targetKey, target string, fn func(ctx context.Context) error) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sendTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.failures.Add(1)
			d.log.Error("Broadcast panicked",
				"event", env.Event, targetKey, target, "panic", fmt.Sprint(r))
		}
	}()

	if err := fn(sendCtx); err != nil {
		d.failures.Add(1)
		d.log.Warn("Broadcast failed",
			"event", env.Event, targetKey, target, "error", err)
	}
}
