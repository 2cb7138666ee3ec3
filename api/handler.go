// Package api exposes the write path and the cached reads over HTTP.
package api

import (
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/services"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

type Handler struct {
	log   *slog.Logger
	chats services.IChatService
}

func NewHandler(log *slog.Logger, chats services.IChatService) *Handler {
	return &Handler{log: log, chats: chats}
}

type userResponse struct {
	ID        domain.UserID `json:"id"`
	Username  string        `json:"username"`
	IsOnline  bool          `json:"isOnline"`
	LastSeen  *time.Time    `json:"lastSeen,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

func fromUser(u domain.User) userResponse {
	res := userResponse{ID: u.ID, Username: u.Username, IsOnline: u.IsOnline, CreatedAt: u.CreatedAt}
	if !u.LastSeen.IsZero() {
		res.LastSeen = &u.LastSeen
	}
	return res
}

type chatResponse struct {
	event.ChatSummary
	CreatedBy   domain.UserID      `json:"createdBy"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	LastMessage *event.MessageData `json:"lastMessage,omitempty"`
}

func fromChat(c domain.Chat) chatResponse {
	res := chatResponse{ChatSummary: event.FromChat(c), CreatedBy: c.CreatedBy, UpdatedAt: c.UpdatedAt}
	if c.LastMessage != nil {
		m := event.FromMessage(*c.LastMessage)
		res.LastMessage = &m
	}
	return res
}

func fromChats(chats []domain.Chat) []chatResponse {
	return lo.Map(chats, func(c domain.Chat, _ int) chatResponse { return fromChat(c) })
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.chats.CreateUser(r.Context(), req.Username)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fromUser(user))
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	user, err := h.chats.GetUser(r.Context(), domain.UserID(id))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fromUser(user))
}

func (h *Handler) GetUserChats(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	chats, err := h.chats.GetUserChats(r.Context(), domain.UserID(id))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fromChats(chats))
}

func (h *Handler) GetAllChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chats.GetAllChats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fromChats(chats))
}

func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var cmd services.CreateChatCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	chat, err := h.chats.CreateChat(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fromChat(chat))
}

func (h *Handler) GetOrCreateDirectChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      domain.UserID `json:"userId"`
		OtherUserID domain.UserID `json:"otherUserId"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	chat, err := h.chats.GetOrCreateDirectChat(r.Context(), req.UserID, req.OtherUserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fromChat(chat))
}

func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "chatID")
	if !ok {
		return
	}
	chat, err := h.chats.GetChat(r.Context(), domain.ChatID(id))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fromChat(chat))
}

func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "chatID")
	if !ok {
		return
	}
	if err := h.chats.DeleteChat(r.Context(), domain.ChatID(id)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.pathID(w, r, "chatID")
	if !ok {
		return
	}
	var req struct {
		UserID domain.UserID `json:"userId"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.chats.AddParticipant(r.Context(), domain.ChatID(chatID), req.UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.pathID(w, r, "chatID")
	if !ok {
		return
	}
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.chats.RemoveParticipant(r.Context(), domain.ChatID(chatID), domain.UserID(userID)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetChatMessages reads ?page= and ?size=, both optional.
func (h *Handler) GetChatMessages(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.pathID(w, r, "chatID")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	messages, err := h.chats.GetChatMessages(r.Context(), domain.ChatID(chatID), page, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(messages, func(m domain.Message, _ int) event.MessageData { return event.FromMessage(m) }))
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.pathID(w, r, "chatID")
	if !ok {
		return
	}
	var cmd services.SendMessageCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.ChatID = domain.ChatID(chatID)
	message, err := h.chats.SendMessage(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event.FromMessage(message))
}

func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "messageID")
	if !ok {
		return
	}
	message, err := h.chats.GetMessage(r.Context(), domain.MessageID(id))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event.FromMessage(message))
}

func (h *Handler) UpdateMessageStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "messageID")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	status, err := domain.ParseMessageStatus(req.Status)
	if err != nil {
		h.fail(w, r, errors.Invalid(err))
		return
	}
	message, err := h.chats.UpdateMessageStatus(r.Context(), domain.MessageID(id), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event.FromMessage(message))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, "malformed body", http.StatusBadRequest)
		return false
	}
	return true
}

// fail maps the error taxonomy to a status. Dependency failures hide their cause.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch errors.KindOf(err) {
	case errors.KindInvalidInput:
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.KindNotFound:
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.KindUnauthorized:
		writeError(w, err.Error(), http.StatusForbidden)
	default:
		h.log.Warn("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, "temporarily unavailable, please retry", http.StatusServiceUnavailable)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
