package api

import (
	"bytes"
	"chat-hub/cache"
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/mocks"
	"chat-hub/repositories"
	"chat-hub/runtime"
	"chat-hub/services"
	"chat-hub/transport"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newServer(t *testing.T, store contract.IStore) *httptest.Server {
	t.Helper()
	log := slog.Default()
	wire := transport.NewLoopback()
	presence := runtime.NewPresence()
	chats := services.NewChatService(log, store, cache.New(4), cache.DefaultTiers(),
		runtime.NewDispatcher(log, wire, time.Second), presence, runtime.NewMembership(log, store, wire), nil)

	ws := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	server := httptest.NewServer(NewRouter(log, NewHandler(log, chats), ws))
	t.Cleanup(server.Close)
	return server
}

func badgerServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := repositories.OpenBadgerStore(t.TempDir(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return newServer(t, store)
}

func call(t *testing.T, server *httptest.Server, method, path string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	r, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	res, err := server.Client().Do(r)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil && res.StatusCode < 300 && res.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func TestAPI_Chat_Lifecycle(t *testing.T) {
	req := require.New(t)
	server := badgerServer(t)

	var alice, bob userResponse
	req.Equal(http.StatusCreated, call(t, server, http.MethodPost, "/api/users", map[string]string{"username": "alice"}, &alice))
	req.Equal(http.StatusCreated, call(t, server, http.MethodPost, "/api/users", map[string]string{"username": "bob"}, &bob))
	req.Equal(http.StatusBadRequest, call(t, server, http.MethodPost, "/api/users", map[string]string{"username": "alice"}, nil))

	// Given a group chat
	var chat chatResponse
	req.Equal(http.StatusCreated, call(t, server, http.MethodPost, "/api/chats", services.CreateChatCommand{
		Name: "team", IsGroup: true, CreatedBy: alice.ID, Participants: []domain.UserID{bob.ID},
	}, &chat))
	req.Len(chat.Participants, 2)

	// When bob posts and marks it read
	var message struct {
		ID     domain.MessageID     `json:"id"`
		Status domain.MessageStatus `json:"status"`
	}
	req.Equal(http.StatusCreated, call(t, server, http.MethodPost, fmt.Sprintf("/api/chats/%d/messages", chat.ChatID),
		map[string]any{"senderId": bob.ID, "content": "hello"}, &message))
	req.Equal(http.StatusOK, call(t, server, http.MethodPut, fmt.Sprintf("/api/messages/%d/status", message.ID),
		map[string]string{"status": "read"}, &message))
	req.Equal(domain.StatusRead, message.Status)
	req.Equal(http.StatusBadRequest, call(t, server, http.MethodPut, fmt.Sprintf("/api/messages/%d/status", message.ID),
		map[string]string{"status": "lost"}, nil))

	// Then alice's chat list carries the preview
	var chats []chatResponse
	req.Equal(http.StatusOK, call(t, server, http.MethodGet, fmt.Sprintf("/api/users/%d/chats", alice.ID), nil, &chats))
	req.Len(chats, 1)
	req.NotNil(chats[0].LastMessage)
	req.Equal("hello", chats[0].LastMessage.Content)

	var page []json.RawMessage
	req.Equal(http.StatusOK, call(t, server, http.MethodGet, fmt.Sprintf("/api/chats/%d/messages?page=1&size=500", chat.ChatID), nil, &page))
	req.Len(page, 1)

	// When the chat is deleted
	req.Equal(http.StatusNoContent, call(t, server, http.MethodDelete, fmt.Sprintf("/api/chats/%d", chat.ChatID), nil, nil))
	req.Equal(http.StatusNotFound, call(t, server, http.MethodGet, fmt.Sprintf("/api/chats/%d", chat.ChatID), nil, nil))
	req.Equal(http.StatusNotFound, call(t, server, http.MethodGet, fmt.Sprintf("/api/messages/%d", message.ID), nil, nil))
}

func TestAPI_Direct_Chat_And_Participants(t *testing.T) {
	req := require.New(t)
	server := badgerServer(t)
	var alice, bob, carol userResponse
	call(t, server, http.MethodPost, "/api/users", map[string]string{"username": "alice"}, &alice)
	call(t, server, http.MethodPost, "/api/users", map[string]string{"username": "bob"}, &bob)
	call(t, server, http.MethodPost, "/api/users", map[string]string{"username": "carol"}, &carol)

	var first, second chatResponse
	req.Equal(http.StatusOK, call(t, server, http.MethodPost, "/api/chats/direct", map[string]any{"userId": alice.ID, "otherUserId": bob.ID}, &first))
	req.Equal(http.StatusOK, call(t, server, http.MethodPost, "/api/chats/direct", map[string]any{"userId": bob.ID, "otherUserId": alice.ID}, &second))
	req.Equal(first.ChatID, second.ChatID)
	req.False(first.IsGroup)
	req.Equal(http.StatusBadRequest, call(t, server, http.MethodPost, "/api/chats/direct", map[string]any{"userId": alice.ID, "otherUserId": alice.ID}, nil))

	// Carol is not in the chat
	req.Equal(http.StatusForbidden, call(t, server, http.MethodPost, fmt.Sprintf("/api/chats/%d/messages", first.ChatID),
		map[string]any{"senderId": carol.ID, "content": "hi"}, nil))

	var group chatResponse
	call(t, server, http.MethodPost, "/api/chats", services.CreateChatCommand{Name: "g", IsGroup: true, CreatedBy: alice.ID}, &group)
	path := fmt.Sprintf("/api/chats/%d/participants", group.ChatID)
	req.Equal(http.StatusNoContent, call(t, server, http.MethodPost, path, map[string]any{"userId": carol.ID}, nil))
	req.Equal(http.StatusBadRequest, call(t, server, http.MethodPost, path, map[string]any{"userId": carol.ID}, nil))
	req.Equal(http.StatusNoContent, call(t, server, http.MethodDelete, fmt.Sprintf("%s/%d", path, carol.ID), nil, nil))
	req.Equal(http.StatusNotFound, call(t, server, http.MethodDelete, fmt.Sprintf("%s/%d", path, carol.ID), nil, nil))
}

func TestAPI_Bad_Requests(t *testing.T) {
	req := require.New(t)
	server := badgerServer(t)

	req.Equal(http.StatusNotFound, call(t, server, http.MethodGet, "/api/users/42", nil, nil))
	req.Equal(http.StatusNotFound, call(t, server, http.MethodGet, "/api/users/abc", nil, nil))
	req.Equal(http.StatusBadRequest, call(t, server, http.MethodGet, "/api/users/0", nil, nil))

	r, err := http.Post(server.URL+"/api/users", "application/json", bytes.NewReader([]byte("{")))
	req.NoError(err)
	_ = r.Body.Close()
	req.Equal(http.StatusBadRequest, r.StatusCode)

	req.Equal(http.StatusOK, call(t, server, http.MethodGet, "/health", nil, nil))
	req.Equal(http.StatusTeapot, call(t, server, http.MethodGet, "/ws", nil, nil))
}

func TestAPI_Store_Failure_Is_Unavailable(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIStore(ctrl)
	server := newServer(t, store)

	// Given a store that is down
	store.EXPECT().GetUserByID(gomock.Any(), domain.UserID(1)).Return(domain.User{}, fmt.Errorf("disk on fire"))

	// Then the caller gets a retryable status without the cause
	r, err := http.Get(server.URL + "/api/users/1")
	req.NoError(err)
	defer r.Body.Close()
	req.Equal(http.StatusServiceUnavailable, r.StatusCode)
	body, err := io.ReadAll(r.Body)
	req.NoError(err)
	req.NotContains(string(body), "disk on fire")
}
