package services

import (
	"chat-hub/cache"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/repositories"
	"chat-hub/runtime"
	"chat-hub/runtime/workers"
	"chat-hub/transport"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordedStatuses struct {
	mu      sync.Mutex
	updates []workers.StatusUpdate
}

func (r *recordedStatuses) Enqueue(update workers.StatusUpdate) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
	return true
}

func (r *recordedStatuses) all() []workers.StatusUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]workers.StatusUpdate(nil), r.updates...)
}

// harness wires the real runtime components over a loopback transport and a
// badger store living in a temporary directory.
type harness struct {
	store      *repositories.BadgerStore
	wire       *transport.Loopback
	cache      *cache.Cache
	dispatcher *runtime.Dispatcher
	presence   *runtime.Presence
	membership *runtime.Membership
	statuses   *recordedStatuses
	hub        *HubService
	chats      *ChatService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := slog.Default()
	store, err := repositories.OpenBadgerStore(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	wire := transport.NewLoopback()
	c := cache.New(8)
	dispatcher := runtime.NewDispatcher(log, wire, time.Second)
	registry := runtime.NewRegistry()
	presence := runtime.NewPresence()
	membership := runtime.NewMembership(log, store, wire)
	statuses := &recordedStatuses{}

	return &harness{
		store:      store,
		wire:       wire,
		cache:      c,
		dispatcher: dispatcher,
		presence:   presence,
		membership: membership,
		statuses:   statuses,
		hub:        NewHubService(log, registry, presence, membership, dispatcher, statuses),
		chats:      NewChatService(log, store, c, cache.DefaultTiers(), dispatcher, presence, membership, nil),
	}
}

func (h *harness) user(t *testing.T, name string) domain.User {
	t.Helper()
	user, err := h.chats.CreateUser(context.Background(), name)
	require.NoError(t, err)
	return user
}

func (h *harness) group(t *testing.T, name string, creator domain.UserID, others ...domain.UserID) domain.Chat {
	t.Helper()
	chat, err := h.chats.CreateChat(context.Background(), CreateChatCommand{
		Name:         name,
		IsGroup:      true,
		CreatedBy:    creator,
		Participants: others,
	})
	require.NoError(t, err)
	return chat
}

// connect opens conn on the wire and joins it as user.
func (h *harness) connect(t *testing.T, conn domain.ConnectionID, user domain.User) {
	t.Helper()
	h.wire.Connect(conn)
	require.NoError(t, h.hub.JoinUser(context.Background(), conn, user.ID, user.Username))
}

func (h *harness) drop(conn domain.ConnectionID) {
	h.wire.Disconnect(conn)
	h.hub.Disconnect(context.Background(), conn)
}

// presenceOf lists the users announced to conn under name.
func (h *harness) presenceOf(conn domain.ConnectionID, name event.Name) []domain.UserID {
	var ids []domain.UserID
	for _, env := range h.wire.Received(conn) {
		if p, ok := env.Payload.(event.UserPresence); ok && env.Event == name {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}

func (h *harness) lastError(t *testing.T, conn domain.ConnectionID) event.ErrorPayload {
	t.Helper()
	received := h.wire.Received(conn)
	for i := len(received) - 1; i >= 0; i-- {
		if p, ok := received[i].Payload.(event.ErrorPayload); ok {
			return p
		}
	}
	require.FailNow(t, "no error event received", "conn %s", conn)
	return event.ErrorPayload{}
}
