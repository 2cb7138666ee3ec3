// Package event enumerates what the hub sends to connected clients.
package event

import (
	"chat-hub/domain"
	"time"
)

type Name string

const (
	Connected            Name = "Connected"
	Error                Name = "Error"
	UserOnline           Name = "UserOnline"
	UserOffline          Name = "UserOffline"
	UserJoinedChat       Name = "UserJoinedChat"
	UserLeftChat         Name = "UserLeftChat"
	UserTyping           Name = "UserTyping"
	MessagesRead         Name = "MessagesRead"
	OnlineUsers          Name = "OnlineUsers"
	ReceiveMessage       Name = "ReceiveMessage"
	MessageStatusUpdated Name = "MessageStatusUpdated"
	ChatCreated          Name = "ChatCreated"
	ChatDeleted          Name = "ChatDeleted"
	ParticipantAdded     Name = "ParticipantAdded"
	ParticipantRemoved   Name = "ParticipantRemoved"
)

// Envelope is the frame written to a connection.
type Envelope struct {
	Event   Name `json:"event"`
	Payload any  `json:"payload"`
}

func New(name Name, payload any) Envelope {
	return Envelope{Event: name, Payload: payload}
}

type UserPresence struct {
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

type ChatMembership struct {
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
	ChatID   domain.ChatID `json:"chatId"`
}

type Typing struct {
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
	IsTyping bool          `json:"isTyping"`
}

type Read struct {
	UserID            domain.UserID    `json:"userId"`
	ChatID            domain.ChatID    `json:"chatId"`
	LastReadMessageID domain.MessageID `json:"lastReadMessageId"`
}

type OnlineUserList struct {
	Users []domain.OnlineUser `json:"users"`
}

type MessageData struct {
	ID        domain.MessageID     `json:"id"`
	ChatID    domain.ChatID        `json:"chatId"`
	SenderID  domain.UserID        `json:"senderId"`
	Content   string               `json:"content"`
	Status    domain.MessageStatus `json:"status"`
	CreatedAt time.Time            `json:"createdAt"`
}

func FromMessage(m domain.Message) MessageData {
	return MessageData{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}
}

type StatusUpdate struct {
	MessageID domain.MessageID     `json:"messageId"`
	Status    domain.MessageStatus `json:"status"`
}

type ChatSummary struct {
	ChatID       domain.ChatID   `json:"chatId"`
	Name         string          `json:"name"`
	IsGroup      bool            `json:"isGroup"`
	Participants []domain.UserID `json:"participants"`
}

func FromChat(c domain.Chat) ChatSummary {
	return ChatSummary{
		ChatID:       c.ID,
		Name:         c.Name,
		IsGroup:      c.IsGroup,
		Participants: c.ParticipantIDs(),
	}
}

type ParticipantChange struct {
	ChatID domain.ChatID `json:"chatId"`
	UserID domain.UserID `json:"userId"`
}
