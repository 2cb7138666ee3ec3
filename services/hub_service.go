package services

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/runtime"
	"chat-hub/runtime/workers"
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// IChatHub is the surface remote clients invoke through the Transport.
// Caller mistakes are answered with an Error event on the calling connection
// and also returned, so that the transport can log them.
type IChatHub interface {
	JoinUser(ctx context.Context, conn domain.ConnectionID, userID domain.UserID, username string) error
	JoinChat(ctx context.Context, conn domain.ConnectionID, chatID domain.ChatID) error
	LeaveChat(ctx context.Context, conn domain.ConnectionID, chatID domain.ChatID) error
	SendTyping(ctx context.Context, conn domain.ConnectionID, chatID domain.ChatID, isTyping bool) error
	MarkMessagesAsRead(ctx context.Context, conn domain.ConnectionID, chatID domain.ChatID, lastReadMessageID domain.MessageID) error
	GetOnlineUsers(ctx context.Context, conn domain.ConnectionID) ([]domain.OnlineUser, error)
	Disconnect(ctx context.Context, conn domain.ConnectionID)
}

type statusQueue interface {
	Enqueue(update workers.StatusUpdate) bool
}

type joinUserRequest struct {
	UserID   domain.UserID `validate:"gt=0"`
	Username string        `validate:"required,max=100"`
}

type chatRequest struct {
	ChatID domain.ChatID `validate:"gt=0"`
}

type HubService struct {
	log        *slog.Logger
	registry   *runtime.Registry
	presence   *runtime.Presence
	membership *runtime.Membership
	dispatcher contract.IDispatcher
	statuses   statusQueue
	now        func() time.Time
}

func NewHubService(log *slog.Logger, registry *runtime.Registry, presence *runtime.Presence,
	membership *runtime.Membership, dispatcher contract.IDispatcher, statuses statusQueue) *HubService {
	return &HubService{
		log:        log,
		registry:   registry,
		presence:   presence,
		membership: membership,
		dispatcher: dispatcher,
		statuses:   statuses,
		now:        time.Now,
	}
}

// JoinUser binds the connection to the user, joins all of the user's rooms
// and announces the user when this is its first live connection.
func (h *HubService) JoinUser(ctx context.Context, conn domain.ConnectionID, userID domain.UserID, username string) error {
	username = strings.TrimSpace(username)
	if err := check(joinUserRequest{UserID: userID, Username: username}); err != nil {
		return h.fail(ctx, conn, "JoinUser", err)
	}

	if previous, replaced := h.registry.Register(conn, userID, username); replaced && previous.UserID != userID {
		// The handle switched identity, retire the old one first.
		h.membership.LeaveAll(ctx, conn)
		h.presence.Serialize(previous.UserID, func() {
			h.applyTransition(ctx, previous, h.presence.OnDisconnect(previous.UserID, conn))
		})
	}

	rooms, err := h.membership.JoinAllRoomsForUser(ctx, conn, userID)
	if err != nil {
		_ = h.fail(ctx, conn, "JoinUser", err)
	}
	h.dispatcher.ToConnection(ctx, conn, event.New(event.Connected, event.UserPresence{UserID: userID, Username: username}))

	var transition domain.Transition
	h.presence.Serialize(userID, func() {
		transition = h.presence.OnConnect(userID, conn)
		h.applyTransition(ctx, domain.ConnectionRecord{ConnectionID: conn, UserID: userID, Username: username}, transition)
	})

	h.log.Info("User joined", "conn_id", conn, "user_id", userID, "rooms", len(rooms), "presence", transition)
	return nil
}

func (h *HubService) JoinChat(ctx context.Context, conn domain.ConnectionID, chatID domain.ChatID) error {
	record, err := h.caller(conn, chatID)
	if err != nil {
		return h.fail(ctx, conn, "JoinChat", err)
	}
	room, err := h.membership.JoinRoom(ctx, conn, record.UserID, chatID)
	if err != nil {
		return h.fail(ctx, conn, "JoinChat", err)
	}
	// The joiner receives its own echo.
	h.dispatcher.ToRoom(ctx, room, event.New(event.UserJoinedChat, event.ChatMembership{
		UserID:   record.UserID,
		Username: record.Username,
		ChatID:   chatID,
	}))
	return nil
}

// LeaveChat is a no-op for a room the connection never joined.
func (h *HubService) LeaveChat(ctx context.Context, conn domain.ConnectionID, chatID domain.ChatID) error {
	record, err := h.caller(conn, chatID)
	if err != nil {
		return h.fail(ctx, conn, "LeaveChat", err)
	}
	room, wasMember := h.membership.LeaveRoom(ctx, conn, chatID)
	if !wasMember {
		h.log.Debug("Leave of a room never joined ignored", "conn_id", conn, "room", room)
		return nil
	}
	h.dispatcher.ToRoom(ctx, room, event.New(event.UserLeftChat, event.ChatMembership{
		UserID:   record.UserID,
		Username: record.Username,
		ChatID:   chatID,
	}))
	return nil
}

func (h *HubService) SendTyping(ctx context.Context, conn domain.ConnectionID, chatID domain.ChatID, isTyping bool) error {
	record, room, err := h.roomMember(conn, chatID)
	if err != nil {
		return h.fail(ctx, conn, "SendTyping", err)
	}
	h.dispatcher.ToAllExcept(ctx, room, conn, event.New(event.UserTyping, event.Typing{
		UserID:   record.UserID,
		Username: record.Username,
		IsTyping: isTyping,
	}))
	return nil
}

func (h *HubService) MarkMessagesAsRead(ctx context.Context, conn domain.ConnectionID, chatID domain.ChatID, lastReadMessageID domain.MessageID) error {
	record, room, err := h.roomMember(conn, chatID)
	if err != nil {
		return h.fail(ctx, conn, "MarkMessagesAsRead", err)
	}
	h.dispatcher.ToAllExcept(ctx, room, conn, event.New(event.MessagesRead, event.Read{
		UserID:            record.UserID,
		ChatID:            chatID,
		LastReadMessageID: lastReadMessageID,
	}))
	return nil
}

// GetOnlineUsers answers with one entry per user, however many devices it has.
func (h *HubService) GetOnlineUsers(ctx context.Context, conn domain.ConnectionID) ([]domain.OnlineUser, error) {
	users := lo.UniqBy(
		lo.Map(h.registry.Records(), func(r domain.ConnectionRecord, _ int) domain.OnlineUser {
			return domain.OnlineUser{UserID: r.UserID, Username: r.Username}
		}),
		func(u domain.OnlineUser) domain.UserID { return u.UserID },
	)
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })

	h.dispatcher.ToConnection(ctx, conn, event.New(event.OnlineUsers, event.OnlineUserList{Users: users}))
	return users, nil
}

// Disconnect cleans up after a connection that went away. Work triggered
// before the disconnect is left to complete.
func (h *HubService) Disconnect(ctx context.Context, conn domain.ConnectionID) {
	record, ok := h.registry.Unregister(conn)
	rooms := h.membership.Forget(conn)
	if !ok {
		return
	}
	var transition domain.Transition
	h.presence.Serialize(record.UserID, func() {
		transition = h.presence.OnDisconnect(record.UserID, conn)
		h.applyTransition(ctx, record, transition)
	})
	h.log.Info("User disconnected", "conn_id", conn, "user_id", record.UserID, "rooms", len(rooms), "presence", transition)
}

// applyTransition broadcasts first/last connection changes and queues the
// store write-back. The write-back never blocks the caller. It runs under
// Presence.Serialize so a user's events and write-backs follow its transitions.
func (h *HubService) applyTransition(ctx context.Context, record domain.ConnectionRecord, transition domain.Transition) {
	if !transition.Observable() {
		return
	}
	presence := event.UserPresence{UserID: record.UserID, Username: record.Username}
	online := transition == domain.BecameOnline
	if online {
		h.dispatcher.ToAll(ctx, event.New(event.UserOnline, presence))
	} else {
		h.dispatcher.ToAll(ctx, event.New(event.UserOffline, presence))
	}
	h.statuses.Enqueue(workers.StatusUpdate{UserID: record.UserID, IsOnline: online, At: h.now().UTC()})
}

func (h *HubService) caller(conn domain.ConnectionID, chatID domain.ChatID) (domain.ConnectionRecord, error) {
	if err := check(chatRequest{ChatID: chatID}); err != nil {
		return domain.ConnectionRecord{}, err
	}
	record, ok := h.registry.Lookup(conn)
	if !ok {
		return domain.ConnectionRecord{}, errors.ErrNotRegistered
	}
	return record, nil
}

// roomMember only lets a connection talk to rooms it has joined.
func (h *HubService) roomMember(conn domain.ConnectionID, chatID domain.ChatID) (domain.ConnectionRecord, domain.RoomKey, error) {
	record, err := h.caller(conn, chatID)
	if err != nil {
		return record, "", err
	}
	room := domain.RoomKeyFor(chatID)
	if !h.membership.IsMember(conn, room) {
		return record, "", errors.ErrNotAParticipant
	}
	return record, room, nil
}

// fail reports err to the calling connection only.
func (h *HubService) fail(ctx context.Context, conn domain.ConnectionID, op string, err error) error {
	kind := errors.KindOf(err)
	message := err.Error()
	if kind == errors.KindTransient {
		h.log.Warn("Hub operation failed", "op", op, "conn_id", conn, "error", err)
		message = "temporarily unavailable, please retry"
	} else {
		h.log.Debug("Hub operation rejected", "op", op, "conn_id", conn, "kind", kind, "error", err)
	}
	h.dispatcher.ToConnection(ctx, conn, event.New(event.Error, event.ErrorPayload{Message: message, Kind: kind.String()}))
	return err
}
