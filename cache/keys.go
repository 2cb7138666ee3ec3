package cache

import (
	"chat-hub/domain"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// Cache keys live here so that writers and readers can't drift apart.
// Prefix helpers end with a separator: "chat_messages_1_" must not match chat 10.
const AllChatsKey = "all_chats"

func UserKey(id domain.UserID) string      { return fmt.Sprintf("user_%d", id) }
func ChatKey(id domain.ChatID) string      { return fmt.Sprintf("chat_%d", id) }
func UserChatsKey(id domain.UserID) string { return fmt.Sprintf("user_chats_%d", id) }
func MessageKey(id domain.MessageID) string {
	return fmt.Sprintf("message_%d", id)
}
func ChatMessagesKey(chatID domain.ChatID, page, size int) string {
	return fmt.Sprintf("chat_messages_%d_%d_%d", chatID, page, size)
}
func ChatMessagesPrefix(chatID domain.ChatID) string {
	return fmt.Sprintf("chat_messages_%d_", chatID)
}

// DirectChatKey is symmetric in its two users.
func DirectChatKey(a, b domain.UserID) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("direct_chat_%d_%d", a, b)
}

// UserChatsKeys maps participants to their "user chats" keys.
func UserChatsKeys(ids []domain.UserID) []string {
	return lo.Map(ids, func(id domain.UserID, _ int) string { return UserChatsKey(id) })
}

// Tiers holds the time-to-live of each kind of entry.
type Tiers struct {
	User         time.Duration
	Chat         time.Duration
	AllChats     time.Duration
	UserChats    time.Duration
	ChatMessages time.Duration
	Message      time.Duration
	DirectChat   time.Duration
}

func DefaultTiers() Tiers {
	return Tiers{
		User:         10 * time.Minute,
		Chat:         5 * time.Minute,
		AllChats:     1 * time.Minute,
		UserChats:    2 * time.Minute,
		ChatMessages: 2 * time.Minute,
		Message:      5 * time.Minute,
		DirectChat:   10 * time.Minute,
	}
}
