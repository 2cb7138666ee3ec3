package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// RoomKey is the Transport group name of a chat.
type RoomKey string

const roomKeyPrefix = "chat_"

// RoomKeyFor derives the group name from the chat id.
func RoomKeyFor(chatID ChatID) RoomKey {
	return RoomKey(roomKeyPrefix + strconv.FormatInt(int64(chatID), 10))
}

// ChatID parses the chat id back out of the key.
func (r RoomKey) ChatID() (ChatID, error) {
	raw, ok := strings.CutPrefix(string(r), roomKeyPrefix)
	if !ok {
		return 0, fmt.Errorf("room key %q has no %q prefix", r, roomKeyPrefix)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("room key %q: %w", r, err)
	}
	return ChatID(id), nil
}

func (r RoomKey) String() string { return string(r) }
