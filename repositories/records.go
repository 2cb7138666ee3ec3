package repositories

import (
	"chat-hub/domain"
	"time"

	"github.com/samber/lo"
)

type userRecord struct {
	ID        int64  `cbor:"id"`
	Username  string `cbor:"username"`
	IsOnline  bool   `cbor:"online"`
	LastSeen  int64  `cbor:"last_seen"`
	CreatedAt int64  `cbor:"created_at"`
}

type participantRecord struct {
	UserID   int64  `cbor:"user_id"`
	Role     string `cbor:"role"`
	JoinedAt int64  `cbor:"joined_at"`
}

type chatRecord struct {
	ID            int64               `cbor:"id"`
	Name          string              `cbor:"name"`
	IsGroup       bool                `cbor:"group"`
	CreatedBy     int64               `cbor:"created_by"`
	CreatedAt     int64               `cbor:"created_at"`
	UpdatedAt     int64               `cbor:"updated_at"`
	Participants  []participantRecord `cbor:"participants"`
	LastMessageID int64               `cbor:"last_message_id"`
}

type messageRecord struct {
	ID        int64  `cbor:"id"`
	ChatID    int64  `cbor:"chat_id"`
	SenderID  int64  `cbor:"sender_id"`
	Content   string `cbor:"content"`
	Status    string `cbor:"status"`
	CreatedAt int64  `cbor:"created_at"`
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func fromUser(u domain.User) userRecord {
	return userRecord{
		ID:        int64(u.ID),
		Username:  u.Username,
		IsOnline:  u.IsOnline,
		LastSeen:  unixNano(u.LastSeen),
		CreatedAt: unixNano(u.CreatedAt),
	}
}

func toUser(r userRecord) domain.User {
	return domain.User{
		ID:        domain.UserID(r.ID),
		Username:  r.Username,
		IsOnline:  r.IsOnline,
		LastSeen:  fromUnixNano(r.LastSeen),
		CreatedAt: fromUnixNano(r.CreatedAt),
	}
}

func fromChat(c domain.Chat) chatRecord {
	return chatRecord{
		ID:        int64(c.ID),
		Name:      c.Name,
		IsGroup:   c.IsGroup,
		CreatedBy: int64(c.CreatedBy),
		CreatedAt: unixNano(c.CreatedAt),
		UpdatedAt: unixNano(c.UpdatedAt),
		Participants: lo.Map(c.Participants, func(p domain.Participant, _ int) participantRecord {
			return participantRecord{UserID: int64(p.UserID), Role: string(p.Role), JoinedAt: unixNano(p.JoinedAt)}
		}),
	}
}

func toChat(r chatRecord) domain.Chat {
	return domain.Chat{
		ID:        domain.ChatID(r.ID),
		Name:      r.Name,
		IsGroup:   r.IsGroup,
		CreatedBy: domain.UserID(r.CreatedBy),
		CreatedAt: fromUnixNano(r.CreatedAt),
		UpdatedAt: fromUnixNano(r.UpdatedAt),
		Participants: lo.Map(r.Participants, func(p participantRecord, _ int) domain.Participant {
			return domain.Participant{
				ChatID:   domain.ChatID(r.ID),
				UserID:   domain.UserID(p.UserID),
				Role:     domain.ParticipantRole(p.Role),
				JoinedAt: fromUnixNano(p.JoinedAt),
			}
		}),
	}
}

func fromMessage(m domain.Message) messageRecord {
	return messageRecord{
		ID:        int64(m.ID),
		ChatID:    int64(m.ChatID),
		SenderID:  int64(m.SenderID),
		Content:   m.Content,
		Status:    string(m.Status),
		CreatedAt: unixNano(m.CreatedAt),
	}
}

func toMessage(r messageRecord) domain.Message {
	return domain.Message{
		ID:        domain.MessageID(r.ID),
		ChatID:    domain.ChatID(r.ChatID),
		SenderID:  domain.UserID(r.SenderID),
		Content:   r.Content,
		Status:    domain.MessageStatus(r.Status),
		CreatedAt: fromUnixNano(r.CreatedAt),
	}
}
