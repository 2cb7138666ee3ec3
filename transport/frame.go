package transport

import (
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"context"
)

// Method names accepted in a Frame.
const (
	MethodJoinUser           = "JoinUser"
	MethodJoinChat           = "JoinChat"
	MethodLeaveChat          = "LeaveChat"
	MethodSendTyping         = "SendTyping"
	MethodMarkMessagesAsRead = "MarkMessagesAsRead"
	MethodGetOnlineUsers     = "GetOnlineUsers"
)

// Methods is what a connection can invoke, implemented by services.HubService.
type Methods interface {
	JoinUser(ctx context.Context, conn domain.ConnectionID, userID domain.UserID, username string) error
	JoinChat(ctx context.Context, conn domain.ConnectionID, chatID domain.ChatID) error
	LeaveChat(ctx context.Context, conn domain.ConnectionID, chatID domain.ChatID) error
	SendTyping(ctx context.Context, conn domain.ConnectionID, chatID domain.ChatID, isTyping bool) error
	MarkMessagesAsRead(ctx context.Context, conn domain.ConnectionID, chatID domain.ChatID, lastReadMessageID domain.MessageID) error
	GetOnlineUsers(ctx context.Context, conn domain.ConnectionID) ([]domain.OnlineUser, error)
	Disconnect(ctx context.Context, conn domain.ConnectionID)
}

// Frame is what a client sends. Only the fields of the invoked method are read.
type Frame struct {
	Method            string           `json:"method"`
	UserID            domain.UserID    `json:"userId,omitempty"`
	Username          string           `json:"username,omitempty"`
	ChatID            domain.ChatID    `json:"chatId,omitempty"`
	IsTyping          bool             `json:"isTyping,omitempty"`
	LastReadMessageID domain.MessageID `json:"lastReadMessageId,omitempty"`
}

// route invokes the hub method named by the frame. Hub methods answer their
// own errors on the connection, reject only covers unknown methods.
func route(ctx context.Context, methods Methods, conn domain.ConnectionID, f Frame, reject func(ctx context.Context, reason string)) {
	switch f.Method {
	case MethodJoinUser:
		_ = methods.JoinUser(ctx, conn, f.UserID, f.Username)
	case MethodJoinChat:
		_ = methods.JoinChat(ctx, conn, f.ChatID)
	case MethodLeaveChat:
		_ = methods.LeaveChat(ctx, conn, f.ChatID)
	case MethodSendTyping:
		_ = methods.SendTyping(ctx, conn, f.ChatID, f.IsTyping)
	case MethodMarkMessagesAsRead:
		_ = methods.MarkMessagesAsRead(ctx, conn, f.ChatID, f.LastReadMessageID)
	case MethodGetOnlineUsers:
		_, _ = methods.GetOnlineUsers(ctx, conn)
	default:
		reject(ctx, "unknown method "+f.Method)
	}
}

func rejection(reason string) event.Envelope {
	return event.New(event.Error, event.ErrorPayload{Message: reason, Kind: errors.KindInvalidInput.String()})
}
