// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable once read; status changes go through the store.
package domain

import (
	"fmt"
	"time"
)

type MessageID int64

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

func ParseMessageStatus(s string) (MessageStatus, error) {
	switch MessageStatus(s) {
	case StatusSent, StatusDelivered, StatusRead:
		return MessageStatus(s), nil
	default:
		return "", fmt.Errorf("unknown message status %q", s)
	}
}

// Message represents an immutable chat event.
type Message struct {
	ID        MessageID
	ChatID    ChatID
	SenderID  UserID
	Content   string
	Status    MessageStatus
	CreatedAt time.Time
}
