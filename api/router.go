package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// NewRouter mounts the REST routes, the websocket endpoint and the health check.
func NewRouter(log *slog.Logger, h *Handler, ws http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(recoverPanic(log), logRequests(log))

	r.Handle("/ws", ws).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprint(w, "ok")
	}).Methods(http.MethodGet)

	a := r.PathPrefix("/api").Subrouter()
	a.HandleFunc("/users", h.CreateUser).Methods(http.MethodPost)
	a.HandleFunc("/users/{userID:[0-9]+}", h.GetUser).Methods(http.MethodGet)
	a.HandleFunc("/users/{userID:[0-9]+}/chats", h.GetUserChats).Methods(http.MethodGet)
	a.HandleFunc("/chats", h.GetAllChats).Methods(http.MethodGet)
	a.HandleFunc("/chats", h.CreateChat).Methods(http.MethodPost)
	a.HandleFunc("/chats/direct", h.GetOrCreateDirectChat).Methods(http.MethodPost)
	a.HandleFunc("/chats/{chatID:[0-9]+}", h.GetChat).Methods(http.MethodGet)
	a.HandleFunc("/chats/{chatID:[0-9]+}", h.DeleteChat).Methods(http.MethodDelete)
	a.HandleFunc("/chats/{chatID:[0-9]+}/participants", h.AddParticipant).Methods(http.MethodPost)
	a.HandleFunc("/chats/{chatID:[0-9]+}/participants/{userID:[0-9]+}", h.RemoveParticipant).Methods(http.MethodDelete)
	a.HandleFunc("/chats/{chatID:[0-9]+}/messages", h.GetChatMessages).Methods(http.MethodGet)
	a.HandleFunc("/chats/{chatID:[0-9]+}/messages", h.SendMessage).Methods(http.MethodPost)
	a.HandleFunc("/messages/{messageID:[0-9]+}", h.GetMessage).Methods(http.MethodGet)
	a.HandleFunc("/messages/{messageID:[0-9]+}/status", h.UpdateMessageStatus).Methods(http.MethodPut)
	return r
}

func recoverPanic(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("Handler panicked", "path", r.URL.Path, "panic", fmt.Sprint(rec))
					w.Header().Set("Connection", "close")
					writeError(w, "internal error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func logRequests(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("Request served", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "duration", time.Since(start))
		})
	}
}
