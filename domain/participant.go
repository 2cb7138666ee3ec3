// Package domain contains core concepts of the chat system.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

type ParticipantRole string

const (
	RoleMember ParticipantRole = "member"
	RoleAdmin  ParticipantRole = "admin"
)

// Participant declares a user as a member of a chat.
// It references both sides by id only.
type Participant struct {
	ChatID   ChatID
	UserID   UserID
	Role     ParticipantRole
	JoinedAt time.Time
}
