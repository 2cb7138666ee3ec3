package runtime

import (
	"chat-hub/domain"
	"sync"
)

type Set map[domain.ConnectionID]struct{}

const presenceStripes = 64

// Presence keeps, per user, the set of live connections.
// A user key exists iff its set is non-empty.
//
// Every transition is computed inside one critical section, so two
// near-simultaneous connects of the same user can never both observe an
// empty set. Serialize extends that ordering to whatever the caller does
// with the transition.
type Presence struct {
	mu      sync.Mutex
	users   map[domain.UserID]Set
	stripes [presenceStripes]sync.Mutex
}

func NewPresence() *Presence {
	return &Presence{users: make(map[domain.UserID]Set)}
}

// Serialize runs fn while holding the user's stripe. Transitions of one user
// computed and applied inside fn take effect in the order they happened.
// fn must not call Serialize.
func (p *Presence) Serialize(userID domain.UserID, fn func()) {
	stripe := &p.stripes[uint64(userID)%presenceStripes]
	stripe.Lock()
	defer stripe.Unlock()
	fn()
}

// OnConnect adds connID to the user's set.
func (p *Presence) OnConnect(userID domain.UserID, connID domain.ConnectionID) domain.Transition {
	p.mu.Lock()
	defer p.mu.Unlock()

	connections, ok := p.users[userID]
	if !ok {
		p.users[userID] = Set{connID: {}}
		return domain.BecameOnline
	}
	connections[connID] = struct{}{}
	return domain.AlreadyOnline
}

// OnDisconnect removes connID from the user's set. Removing an unknown
// connection of an offline user reports StillOnline so that nothing is
// broadcast twice.
func (p *Presence) OnDisconnect(userID domain.UserID, connID domain.ConnectionID) domain.Transition {
	p.mu.Lock()
	defer p.mu.Unlock()

	connections, ok := p.users[userID]
	if !ok {
		return domain.StillOnline
	}
	if _, member := connections[connID]; !member {
		return domain.StillOnline
	}
	delete(connections, connID)
	if len(connections) == 0 {
		delete(p.users, userID)
		return domain.BecameOffline
	}
	return domain.StillOnline
}

func (p *Presence) IsOnline(userID domain.UserID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.users[userID]
	return ok
}

// Connections returns a copy of the user's live handles.
func (p *Presence) Connections(userID domain.UserID) []domain.ConnectionID {
	p.mu.Lock()
	defer p.mu.Unlock()

	connections := p.users[userID]
	if len(connections) == 0 {
		return nil
	}
	res := make([]domain.ConnectionID, 0, len(connections))
	for connID := range connections {
		res = append(res, connID)
	}
	return res
}

func (p *Presence) OnlineCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.users)
}
