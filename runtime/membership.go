package runtime

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/errors"
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
)

// Membership joins and leaves the Transport groups of chats.
//
// Participation is always re-read from the store at join time and never
// cached, so a removed participant can't keep receiving a room's traffic
// through a stale snapshot.
type Membership struct {
	log       *slog.Logger
	store     contract.IChatStore
	transport contract.ITransport

	mu     sync.Mutex
	joined map[domain.ConnectionID]map[domain.RoomKey]struct{}
}

func NewMembership(log *slog.Logger, store contract.IChatStore, transport contract.ITransport) *Membership {
	return &Membership{
		log:       log,
		store:     store,
		transport: transport,
		joined:    make(map[domain.ConnectionID]map[domain.RoomKey]struct{}),
	}
}

// JoinAllRoomsForUser joins every chat the user belongs to, most recent first.
// A room that fails to join is logged and skipped.
func (m *Membership) JoinAllRoomsForUser(ctx context.Context, connID domain.ConnectionID, userID domain.UserID) ([]domain.RoomKey, error) {
	chats, err := m.store.GetUserChats(ctx, userID)
	if err != nil {
		return nil, errors.Transient("list user chats", err)
	}

	rooms := make([]domain.RoomKey, 0, len(chats))
	for _, chat := range chats {
		room := domain.RoomKeyFor(chat.ID)
		if err = m.transport.JoinGroup(ctx, connID, room); err != nil {
			m.log.Warn("Failed to join room, skipping",
				"conn_id", connID, "user_id", userID, "room", room, "error", err)
			continue
		}
		m.track(connID, room)
		rooms = append(rooms, room)
	}
	m.log.Debug("Joined user rooms", "conn_id", connID, "user_id", userID, "rooms", len(rooms))
	return rooms, nil
}

// JoinRoom validates that the user is a declared participant and joins the room.
func (m *Membership) JoinRoom(ctx context.Context, connID domain.ConnectionID, userID domain.UserID, chatID domain.ChatID) (domain.RoomKey, error) {
	chat, err := m.store.GetChatByID(ctx, chatID)
	if err != nil {
		if stderrors.Is(err, errors.ErrChatNotFound) {
			return "", errors.ErrChatNotFound
		}
		return "", errors.Transient("resolve chat participants", err)
	}
	if !chat.HasParticipant(userID) {
		return "", errors.ErrNotAParticipant
	}

	room := domain.RoomKeyFor(chatID)
	if err = m.transport.JoinGroup(ctx, connID, room); err != nil {
		return "", errors.Transient("join room", err)
	}
	m.track(connID, room)
	return room, nil
}

// LeaveRoom removes the connection from the room. It reports whether the
// connection was a member, leaving a room never joined is a no-op.
func (m *Membership) LeaveRoom(ctx context.Context, connID domain.ConnectionID, chatID domain.ChatID) (domain.RoomKey, bool) {
	room := domain.RoomKeyFor(chatID)
	wasMember := m.untrack(connID, room)
	if !wasMember {
		return room, false
	}
	if err := m.transport.LeaveGroup(ctx, connID, room); err != nil {
		m.log.Warn("Failed to leave room", "conn_id", connID, "room", room, "error", err)
	}
	return room, true
}

func (m *Membership) IsMember(connID domain.ConnectionID, room domain.RoomKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.joined[connID][room]
	return ok
}

// Forget drops every room of a connection that went away. The Transport
// cleans its own groups on disconnect.
func (m *Membership) Forget(connID domain.ConnectionID) []domain.RoomKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	rooms := make([]domain.RoomKey, 0, len(m.joined[connID]))
	for room := range m.joined[connID] {
		rooms = append(rooms, room)
	}
	delete(m.joined, connID)
	return rooms
}

// LeaveAll leaves every room the connection joined, used when a connection
// switches to another identity.
func (m *Membership) LeaveAll(ctx context.Context, connID domain.ConnectionID) []domain.RoomKey {
	rooms := m.Forget(connID)
	for _, room := range rooms {
		if err := m.transport.LeaveGroup(ctx, connID, room); err != nil {
			m.log.Warn("Failed to leave room", "conn_id", connID, "room", room, "error", err)
		}
	}
	return rooms
}

func (m *Membership) track(connID domain.ConnectionID, room domain.RoomKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rooms, ok := m.joined[connID]
	if !ok {
		rooms = make(map[domain.RoomKey]struct{})
		m.joined[connID] = rooms
	}
	rooms[room] = struct{}{}
}

func (m *Membership) untrack(connID domain.ConnectionID, room domain.RoomKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rooms, ok := m.joined[connID]
	if !ok {
		return false
	}
	if _, ok = rooms[room]; !ok {
		return false
	}
	delete(rooms, room)
	if len(rooms) == 0 {
		delete(m.joined, connID)
	}
	return true
}
