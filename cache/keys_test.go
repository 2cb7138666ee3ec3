package cache

import (
	"chat-hub/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectChatKey_Is_Symmetric(t *testing.T) {
	req := require.New(t)

	req.Equal(DirectChatKey(3, 9), DirectChatKey(9, 3))
	req.Equal("direct_chat_3_9", DirectChatKey(9, 3))
}

func TestKeys_Format(t *testing.T) {
	req := require.New(t)

	req.Equal("user_1", UserKey(1))
	req.Equal("chat_7", ChatKey(7))
	req.Equal("user_chats_2", UserChatsKey(2))
	req.Equal("message_11", MessageKey(11))
	req.Equal("chat_messages_7_1_50", ChatMessagesKey(7, 1, 50))
	req.Equal([]string{"user_chats_1", "user_chats_2"}, UserChatsKeys([]domain.UserID{1, 2}))
}
