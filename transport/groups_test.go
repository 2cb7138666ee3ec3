package transport

import (
	"chat-hub/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroups_Join_Leave_Drop(t *testing.T) {
	req := require.New(t)
	groups := NewGroups()

	groups.Join("c1", "chat_1")
	groups.Join("c2", "chat_1")
	groups.Join("c1", "chat_2")

	req.ElementsMatch([]domain.ConnectionID{"c1", "c2"}, groups.Members("chat_1"))
	req.Equal([]domain.ConnectionID{"c2"}, groups.Members("chat_1", "c1"))

	groups.Leave("c2", "chat_1")
	groups.Leave("c2", "chat_1")
	req.False(groups.Contains("c2", "chat_1"))

	groups.Drop("c1")
	req.Empty(groups.Members("chat_1"))
	req.Empty(groups.Members("chat_2"))
	req.Empty(groups.members)
	req.Empty(groups.byConn)
}
