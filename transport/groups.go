package transport

import (
	"chat-hub/domain"
	"sync"

	"github.com/samber/lo"
)

// Groups tracks which connections belong to which named group.
// Empty groups are removed.
type Groups struct {
	mu      sync.RWMutex
	members map[domain.RoomKey]map[domain.ConnectionID]struct{}
	byConn  map[domain.ConnectionID]map[domain.RoomKey]struct{}
}

func NewGroups() *Groups {
	return &Groups{
		members: make(map[domain.RoomKey]map[domain.ConnectionID]struct{}),
		byConn:  make(map[domain.ConnectionID]map[domain.RoomKey]struct{}),
	}
}

func (g *Groups) Join(conn domain.ConnectionID, group domain.RoomKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.members[group]; !ok {
		g.members[group] = make(map[domain.ConnectionID]struct{})
	}
	g.members[group][conn] = struct{}{}
	if _, ok := g.byConn[conn]; !ok {
		g.byConn[conn] = make(map[domain.RoomKey]struct{})
	}
	g.byConn[conn][group] = struct{}{}
}

// Leave is a no-op when conn is not in group.
func (g *Groups) Leave(conn domain.ConnectionID, group domain.RoomKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leave(conn, group)
}

// Drop removes conn from every group it joined.
func (g *Groups) Drop(conn domain.ConnectionID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for group := range g.byConn[conn] {
		g.leave(conn, group)
	}
}

// Members returns a snapshot of the group without the excluded connections.
func (g *Groups) Members(group domain.RoomKey, except ...domain.ConnectionID) []domain.ConnectionID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	members := make([]domain.ConnectionID, 0, len(g.members[group]))
	for conn := range g.members[group] {
		if !lo.Contains(except, conn) {
			members = append(members, conn)
		}
	}
	return members
}

func (g *Groups) Contains(conn domain.ConnectionID, group domain.RoomKey) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.members[group][conn]
	return ok
}

func (g *Groups) leave(conn domain.ConnectionID, group domain.RoomKey) {
	if members, ok := g.members[group]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(g.members, group)
		}
	}
	if groups, ok := g.byConn[conn]; ok {
		delete(groups, group)
		if len(groups) == 0 {
			delete(g.byConn, conn)
		}
	}
}
