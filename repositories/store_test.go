package repositories

import (
	"chat-hub/domain"
	"chat-hub/errors"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	store, err := NewBadgerStore(db, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
		_ = db.Close()
	})
	return store
}

func createUsers(t *testing.T, store *BadgerStore, names ...string) []domain.User {
	t.Helper()
	users := make([]domain.User, 0, len(names))
	for _, name := range names {
		user, err := store.CreateUser(context.Background(), name)
		require.NoError(t, err)
		users = append(users, user)
	}
	return users
}

func group(name string, createdBy domain.UserID, members ...domain.UserID) domain.Chat {
	chat := domain.Chat{Name: name, IsGroup: true, CreatedBy: createdBy}
	for _, m := range members {
		chat.Participants = append(chat.Participants, domain.Participant{UserID: m})
	}
	return chat
}

func TestBadgerStore_Users(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	// Given alice
	alice := createUsers(t, store, "alice")[0]
	req.Equal(domain.UserID(1), alice.ID)

	// When a second alice registers
	_, err := store.CreateUser(ctx, "alice")

	// Then the username is refused
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
	req.Equal(errors.KindInvalidInput, errors.KindOf(err))

	// When alice goes offline
	lastSeen := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	req.NoError(store.UpdateUser(ctx, domain.User{ID: alice.ID, Username: "renamed", IsOnline: false, LastSeen: lastSeen}))

	// Then her status changes but her identity does not
	stored, err := store.GetUserByID(ctx, alice.ID)
	req.NoError(err)
	req.Equal("alice", stored.Username)
	req.Equal(lastSeen, stored.LastSeen)
	req.Equal(alice.CreatedAt, stored.CreatedAt)

	_, err = store.GetUserByID(ctx, 42)
	req.ErrorIs(err, errors.ErrUserNotFound)
	req.ErrorIs(store.UpdateUser(ctx, domain.User{ID: 42}), errors.ErrUserNotFound)
}

func TestBadgerStore_Group_Chat_Participants(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)
	users := createUsers(t, store, "alice", "bob", "carol")

	// Given a group created by alice with bob, alice listed twice
	chat, err := store.CreateChat(ctx, group("team", users[0].ID, users[0].ID, users[1].ID, users[0].ID))
	req.NoError(err)
	req.Len(chat.Participants, 2)

	// When carol is added then bob removed
	req.NoError(store.AddParticipant(ctx, domain.Participant{ChatID: chat.ID, UserID: users[2].ID}))
	req.ErrorIs(store.AddParticipant(ctx, domain.Participant{ChatID: chat.ID, UserID: users[2].ID}), errors.ErrAlreadyParticipant)
	req.NoError(store.RemoveParticipant(ctx, chat.ID, users[1].ID))
	req.ErrorIs(store.RemoveParticipant(ctx, chat.ID, users[1].ID), errors.ErrParticipantMissing)

	// Then the chat and the membership index agree
	stored, err := store.GetChatByID(ctx, chat.ID)
	req.NoError(err)
	req.ElementsMatch([]domain.UserID{users[0].ID, users[2].ID}, stored.ParticipantIDs())

	bobChats, err := store.GetUserChats(ctx, users[1].ID)
	req.NoError(err)
	req.Empty(bobChats)
	carolChats, err := store.GetUserChats(ctx, users[2].ID)
	req.NoError(err)
	req.Len(carolChats, 1)

	req.ErrorIs(store.AddParticipant(ctx, domain.Participant{ChatID: 99, UserID: 1}), errors.ErrChatNotFound)
}

func TestBadgerStore_Direct_Chat_Is_Unique_And_Symmetric(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)
	users := createUsers(t, store, "alice", "bob")
	direct := func(a, b domain.UserID) domain.Chat {
		return domain.Chat{CreatedBy: a, Participants: []domain.Participant{{UserID: a}, {UserID: b}}}
	}

	// When the pair creates its chat from both sides
	first, err := store.CreateChat(ctx, direct(users[0].ID, users[1].ID))
	req.NoError(err)
	second, err := store.CreateChat(ctx, direct(users[1].ID, users[0].ID))
	req.NoError(err)

	// Then only one chat exists, found from either side
	req.Equal(first.ID, second.ID)
	found, err := store.FindDirectChat(ctx, users[1].ID, users[0].ID)
	req.NoError(err)
	req.Equal(first.ID, found.ID)
	all, err := store.GetAllChats(ctx)
	req.NoError(err)
	req.Len(all, 1)

	// And a direct chat can't grow
	carol := createUsers(t, store, "carol")[0]
	err = store.AddParticipant(ctx, domain.Participant{ChatID: first.ID, UserID: carol.ID})
	req.Equal(errors.KindInvalidInput, errors.KindOf(err))

	// When it is deleted, the pair can start over
	req.NoError(store.DeleteChat(ctx, first.ID))
	_, err = store.FindDirectChat(ctx, users[0].ID, users[1].ID)
	req.ErrorIs(err, errors.ErrChatNotFound)
}

func TestBadgerStore_User_Chats_Most_Recent_First(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)
	users := createUsers(t, store, "alice", "bob")

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	older, err := store.CreateChat(ctx, group("older", users[0].ID, users[0].ID, users[1].ID))
	req.NoError(err)
	newer, err := store.CreateChat(ctx, group("newer", users[0].ID, users[0].ID))
	req.NoError(err)

	chats, err := store.GetUserChats(ctx, users[0].ID)
	req.NoError(err)
	req.Equal([]domain.ChatID{newer.ID, older.ID}, []domain.ChatID{chats[0].ID, chats[1].ID})

	// When a message is posted in the older chat
	message, err := store.CreateMessage(ctx, domain.Message{ChatID: older.ID, SenderID: users[1].ID, Content: "hi"})
	req.NoError(err)

	// Then it moves to the front and carries the preview
	chats, err = store.GetUserChats(ctx, users[0].ID)
	req.NoError(err)
	req.Equal(older.ID, chats[0].ID)
	req.NotNil(chats[0].LastMessage)
	req.Equal(message.ID, chats[0].LastMessage.ID)
}

func TestBadgerStore_Messages_Paging_And_Status(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)
	users := createUsers(t, store, "alice")
	chat, err := store.CreateChat(ctx, group("notes", users[0].ID, users[0].ID))
	req.NoError(err)

	var ids []domain.MessageID
	for i := 0; i < 5; i++ {
		m, err := store.CreateMessage(ctx, domain.Message{ChatID: chat.ID, SenderID: users[0].ID, Content: "note"})
		req.NoError(err)
		req.Equal(domain.StatusSent, m.Status)
		ids = append(ids, m.ID)
	}

	// Then pages are newest first
	page1, err := store.GetChatMessages(ctx, chat.ID, 1, 2)
	req.NoError(err)
	req.Equal([]domain.MessageID{ids[4], ids[3]}, []domain.MessageID{page1[0].ID, page1[1].ID})
	page3, err := store.GetChatMessages(ctx, chat.ID, 3, 2)
	req.NoError(err)
	req.Len(page3, 1)
	req.Equal(ids[0], page3[0].ID)
	page4, err := store.GetChatMessages(ctx, chat.ID, 4, 2)
	req.NoError(err)
	req.Empty(page4)

	// When a message is read
	updated, err := store.UpdateMessageStatus(ctx, ids[2], domain.StatusRead)
	req.NoError(err)
	req.Equal(domain.StatusRead, updated.Status)
	fetched, err := store.GetMessageByID(ctx, ids[2])
	req.NoError(err)
	req.Equal(domain.StatusRead, fetched.Status)

	_, err = store.GetChatMessages(ctx, 99, 1, 10)
	req.ErrorIs(err, errors.ErrChatNotFound)
	_, err = store.CreateMessage(ctx, domain.Message{ChatID: 99, SenderID: users[0].ID, Content: "x"})
	req.ErrorIs(err, errors.ErrChatNotFound)
}

func TestBadgerStore_DeleteChat_Removes_Messages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)
	users := createUsers(t, store, "alice", "bob")
	chat, err := store.CreateChat(ctx, group("gone", users[0].ID, users[0].ID, users[1].ID))
	req.NoError(err)
	message, err := store.CreateMessage(ctx, domain.Message{ChatID: chat.ID, SenderID: users[0].ID, Content: "bye"})
	req.NoError(err)

	req.NoError(store.DeleteChat(ctx, chat.ID))

	_, err = store.GetChatByID(ctx, chat.ID)
	req.ErrorIs(err, errors.ErrChatNotFound)
	_, err = store.GetMessageByID(ctx, message.ID)
	req.ErrorIs(err, errors.ErrMessageNotFound)
	chats, err := store.GetUserChats(ctx, users[1].ID)
	req.NoError(err)
	req.Empty(chats)
	req.ErrorIs(store.DeleteChat(ctx, chat.ID), errors.ErrChatNotFound)
}

func TestDescribe(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	alice := createUsers(t, store, "alice")[0]

	var row InspectRow
	err := store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userKey(alice.ID)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			row = Describe(string(item.Key()), val)
			return nil
		})
	})
	req.NoError(err)
	req.Equal("USER", row.Type)
	req.Equal("1", row.ID)
	req.Contains(row.Detail, "alice")
	req.Equal("-> 7", Describe("direct:1:2", []byte("7")).Detail)
}
