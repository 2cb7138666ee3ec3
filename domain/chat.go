package domain

import (
	"time"

	"github.com/samber/lo"
)

type ChatID int64

// Chat is a snapshot of a chat and its declared participants.
// LastMessage is a preview only and may lag behind the message log.
type Chat struct {
	ID           ChatID
	Name         string
	IsGroup      bool
	CreatedBy    UserID
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Participants []Participant
	LastMessage  *Message
}

func (c Chat) ParticipantIDs() []UserID {
	return lo.Map(c.Participants, func(p Participant, _ int) UserID { return p.UserID })
}

func (c Chat) HasParticipant(userID UserID) bool {
	return lo.ContainsBy(c.Participants, func(p Participant) bool { return p.UserID == userID })
}

// IsDirectBetween reports whether the chat is the 1:1 chat of a and b.
func (c Chat) IsDirectBetween(a, b UserID) bool {
	return !c.IsGroup && len(c.Participants) == 2 && c.HasParticipant(a) && c.HasParticipant(b)
}
