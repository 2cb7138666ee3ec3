package sqlite

import (
	"chat-hub/domain"
	"fmt"
	"time"
)

type userModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Username  string `gorm:"uniqueIndex;not null"`
	IsOnline  bool
	LastSeen  *time.Time
	CreatedAt time.Time
}

func (userModel) TableName() string { return "users" }

type chatModel struct {
	ID            int64 `gorm:"primaryKey;autoIncrement"`
	Name          string
	IsGroup       bool
	DirectKey     *string `gorm:"uniqueIndex"`
	CreatedBy     int64
	CreatedAt     time.Time
	UpdatedAt     time.Time `gorm:"index"`
	LastMessageID *int64
}

func (chatModel) TableName() string { return "chats" }

type participantModel struct {
	ChatID   int64 `gorm:"primaryKey"`
	UserID   int64 `gorm:"primaryKey;index"`
	Role     string
	JoinedAt time.Time
}

func (participantModel) TableName() string { return "chat_participants" }

type messageModel struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	ChatID    int64 `gorm:"index:idx_messages_chat_id"`
	SenderID  int64
	Content   string
	Status    string
	CreatedAt time.Time
}

func (messageModel) TableName() string { return "messages" }

func directKey(a, b domain.UserID) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

func toUser(m userModel) domain.User {
	user := domain.User{
		ID:        domain.UserID(m.ID),
		Username:  m.Username,
		IsOnline:  m.IsOnline,
		CreatedAt: m.CreatedAt.UTC(),
	}
	if m.LastSeen != nil {
		user.LastSeen = m.LastSeen.UTC()
	}
	return user
}

func toParticipant(m participantModel) domain.Participant {
	return domain.Participant{
		ChatID:   domain.ChatID(m.ChatID),
		UserID:   domain.UserID(m.UserID),
		Role:     domain.ParticipantRole(m.Role),
		JoinedAt: m.JoinedAt.UTC(),
	}
}

func toMessage(m messageModel) domain.Message {
	return domain.Message{
		ID:        domain.MessageID(m.ID),
		ChatID:    domain.ChatID(m.ChatID),
		SenderID:  domain.UserID(m.SenderID),
		Content:   m.Content,
		Status:    domain.MessageStatus(m.Status),
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func toChat(m chatModel, participants []participantModel, last *messageModel) domain.Chat {
	chat := domain.Chat{
		ID:        domain.ChatID(m.ID),
		Name:      m.Name,
		IsGroup:   m.IsGroup,
		CreatedBy: domain.UserID(m.CreatedBy),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
	for _, p := range participants {
		chat.Participants = append(chat.Participants, toParticipant(p))
	}
	if last != nil {
		msg := toMessage(*last)
		chat.LastMessage = &msg
	}
	return chat
}
