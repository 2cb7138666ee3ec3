package transport

import (
	"chat-hub/domain"
	"chat-hub/domain/event"
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
)

// Loopback is an in-process ITransport that records what every connection
// would have received. The layers above the transport are tested against it.
type Loopback struct {
	groups *Groups
	mu     sync.Mutex
	conns  []domain.ConnectionID
	inbox  map[domain.ConnectionID][]event.Envelope
}

func NewLoopback() *Loopback {
	return &Loopback{groups: NewGroups(), inbox: make(map[domain.ConnectionID][]event.Envelope)}
}

// Connect makes conn reachable, as an accepted socket would be.
func (l *Loopback) Connect(conn domain.ConnectionID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !lo.Contains(l.conns, conn) {
		l.conns = append(l.conns, conn)
	}
}

func (l *Loopback) Disconnect(conn domain.ConnectionID) {
	l.mu.Lock()
	l.conns = lo.Without(l.conns, conn)
	l.mu.Unlock()
	l.groups.Drop(conn)
}

func (l *Loopback) JoinGroup(_ context.Context, conn domain.ConnectionID, group domain.RoomKey) error {
	if !l.connected(conn) {
		return fmt.Errorf("join %s: %w", group, ErrConnectionGone)
	}
	l.groups.Join(conn, group)
	return nil
}

func (l *Loopback) LeaveGroup(_ context.Context, conn domain.ConnectionID, group domain.RoomKey) error {
	l.groups.Leave(conn, group)
	return nil
}

func (l *Loopback) SendToGroup(_ context.Context, group domain.RoomKey, env event.Envelope, except ...domain.ConnectionID) error {
	l.deliver(env, l.groups.Members(group, except...))
	return nil
}

func (l *Loopback) SendToAll(_ context.Context, env event.Envelope, except ...domain.ConnectionID) error {
	l.mu.Lock()
	targets := lo.Without(append([]domain.ConnectionID(nil), l.conns...), except...)
	l.mu.Unlock()
	l.deliver(env, targets)
	return nil
}

func (l *Loopback) SendToConnection(_ context.Context, conn domain.ConnectionID, env event.Envelope) error {
	if !l.connected(conn) {
		return ErrConnectionGone
	}
	l.deliver(env, []domain.ConnectionID{conn})
	return nil
}

func (l *Loopback) InGroup(conn domain.ConnectionID, group domain.RoomKey) bool {
	return l.groups.Contains(conn, group)
}

// Received returns what conn got so far, in delivery order.
func (l *Loopback) Received(conn domain.ConnectionID) []event.Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]event.Envelope(nil), l.inbox[conn]...)
}

// Count returns how many events named name conn received.
func (l *Loopback) Count(conn domain.ConnectionID, name event.Name) int {
	return lo.CountBy(l.Received(conn), func(env event.Envelope) bool { return env.Event == name })
}

func (l *Loopback) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inbox = make(map[domain.ConnectionID][]event.Envelope)
}

func (l *Loopback) connected(conn domain.ConnectionID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return lo.Contains(l.conns, conn)
}

func (l *Loopback) deliver(env event.Envelope, targets []domain.ConnectionID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, conn := range targets {
		l.inbox[conn] = append(l.inbox[conn], env)
	}
}
