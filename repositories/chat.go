package repositories

import (
	"chat-hub/domain"
	"chat-hub/errors"
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

func chatKey(id domain.ChatID) string { return fmt.Sprintf("chat:%d", id) }
func memberKey(userID domain.UserID, chatID domain.ChatID) string {
	return fmt.Sprintf("member:%d:%d", userID, chatID)
}
func memberPrefix(userID domain.UserID) string { return fmt.Sprintf("member:%d:", userID) }
func directKey(a, b domain.UserID) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("direct:%d:%d", a, b)
}

func isDirect(chat domain.Chat) bool {
	return !chat.IsGroup && len(chat.Participants) == 2
}

// CreateChat persists a chat and its participants. Creating a direct chat for
// a pair that already has one returns the existing chat instead.
func (s *BadgerStore) CreateChat(_ context.Context, chat domain.Chat) (domain.Chat, error) {
	id, err := nextID(s.chatSeq)
	if err != nil {
		return domain.Chat{}, err
	}
	now := s.now().UTC()
	chat.ID = domain.ChatID(id)
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now
	}
	chat.UpdatedAt = chat.CreatedAt
	chat.Participants = lo.UniqBy(chat.Participants, func(p domain.Participant) domain.UserID { return p.UserID })
	for i := range chat.Participants {
		chat.Participants[i].ChatID = chat.ID
		if chat.Participants[i].JoinedAt.IsZero() {
			chat.Participants[i].JoinedAt = chat.CreatedAt
		}
		if chat.Participants[i].Role == "" {
			chat.Participants[i].Role = domain.RoleMember
		}
	}
	direct := isDirect(chat)

	var existing *domain.Chat
	err = s.update(func(txn *badger.Txn) error {
		existing = nil
		if direct {
			found, err := loadDirect(txn, chat.Participants[0].UserID, chat.Participants[1].UserID)
			if err == nil {
				existing = &found
				return nil
			}
			if !isNotFound(err) {
				return err
			}
			if err = txn.Set([]byte(directKey(chat.Participants[0].UserID, chat.Participants[1].UserID)),
				[]byte(strconv.FormatInt(id, 10))); err != nil {
				return err
			}
		}
		if err := setRecord(txn, chatKey(chat.ID), fromChat(chat)); err != nil {
			return err
		}
		for _, p := range chat.Participants {
			if err := txn.Set([]byte(memberKey(p.UserID, chat.ID)), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Chat{}, err
	}
	if existing != nil {
		s.log.Debug("Direct chat already exists", "chat_id", existing.ID)
		return *existing, nil
	}
	return toChat(fromChat(chat)), nil
}

func (s *BadgerStore) GetChatByID(_ context.Context, id domain.ChatID) (domain.Chat, error) {
	var chat domain.Chat
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		chat, err = loadChat(txn, id)
		return err
	})
	return chat, err
}

// GetUserChats returns the user's chats, most recently active first.
func (s *BadgerStore) GetUserChats(_ context.Context, userID domain.UserID) ([]domain.Chat, error) {
	var chats []domain.Chat
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(memberPrefix(userID))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			chatID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("corrupted membership key %q: %w", it.Item().Key(), err)
			}
			chat, err := loadChat(txn, domain.ChatID(chatID))
			if isNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			chats = append(chats, chat)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByRecency(chats)
	return chats, nil
}

func (s *BadgerStore) GetAllChats(_ context.Context) ([]domain.Chat, error) {
	var chats []domain.Chat
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("chat:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			chatID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("corrupted chat key %q: %w", it.Item().Key(), err)
			}
			chat, err := loadChat(txn, domain.ChatID(chatID))
			if err != nil {
				return err
			}
			chats = append(chats, chat)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByRecency(chats)
	return chats, nil
}

func (s *BadgerStore) FindDirectChat(_ context.Context, a, b domain.UserID) (domain.Chat, error) {
	var chat domain.Chat
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		chat, err = loadDirect(txn, a, b)
		return err
	})
	return chat, err
}

func (s *BadgerStore) AddParticipant(_ context.Context, participant domain.Participant) error {
	return s.update(func(txn *badger.Txn) error {
		var record chatRecord
		if err := getRecord(txn, chatKey(participant.ChatID), errors.ErrChatNotFound, &record); err != nil {
			return err
		}
		if !record.IsGroup {
			return errors.Invalid(fmt.Errorf("chat %d is a direct chat", participant.ChatID))
		}
		if lo.ContainsBy(record.Participants, func(p participantRecord) bool { return p.UserID == int64(participant.UserID) }) {
			return errors.ErrAlreadyParticipant
		}
		if participant.JoinedAt.IsZero() {
			participant.JoinedAt = s.now().UTC()
		}
		if participant.Role == "" {
			participant.Role = domain.RoleMember
		}
		record.Participants = append(record.Participants, participantRecord{
			UserID:   int64(participant.UserID),
			Role:     string(participant.Role),
			JoinedAt: unixNano(participant.JoinedAt),
		})
		if err := setRecord(txn, chatKey(participant.ChatID), record); err != nil {
			return err
		}
		return txn.Set([]byte(memberKey(participant.UserID, participant.ChatID)), nil)
	})
}

func (s *BadgerStore) RemoveParticipant(_ context.Context, chatID domain.ChatID, userID domain.UserID) error {
	return s.update(func(txn *badger.Txn) error {
		var record chatRecord
		if err := getRecord(txn, chatKey(chatID), errors.ErrChatNotFound, &record); err != nil {
			return err
		}
		remaining := lo.Reject(record.Participants, func(p participantRecord, _ int) bool { return p.UserID == int64(userID) })
		if len(remaining) == len(record.Participants) {
			return errors.ErrParticipantMissing
		}
		record.Participants = remaining
		if err := setRecord(txn, chatKey(chatID), record); err != nil {
			return err
		}
		return txn.Delete([]byte(memberKey(userID, chatID)))
	})
}

// DeleteChat removes the chat, its indexes, then its messages in a write batch.
func (s *BadgerStore) DeleteChat(_ context.Context, id domain.ChatID) error {
	err := s.update(func(txn *badger.Txn) error {
		var record chatRecord
		if err := getRecord(txn, chatKey(id), errors.ErrChatNotFound, &record); err != nil {
			return err
		}
		chat := toChat(record)
		if isDirect(chat) {
			if err := txn.Delete([]byte(directKey(chat.Participants[0].UserID, chat.Participants[1].UserID))); err != nil {
				return err
			}
		}
		for _, p := range chat.Participants {
			if err := txn.Delete([]byte(memberKey(p.UserID, id))); err != nil {
				return err
			}
		}
		return txn.Delete([]byte(chatKey(id)))
	})
	if err != nil {
		return err
	}
	return s.deleteMessages(id)
}

func loadChat(txn *badger.Txn, id domain.ChatID) (domain.Chat, error) {
	var record chatRecord
	if err := getRecord(txn, chatKey(id), errors.ErrChatNotFound, &record); err != nil {
		return domain.Chat{}, err
	}
	chat := toChat(record)
	if record.LastMessageID != 0 {
		var last messageRecord
		err := getRecord(txn, messageKey(chat.ID, domain.MessageID(record.LastMessageID)), errors.ErrMessageNotFound, &last)
		if err != nil && !isNotFound(err) {
			return domain.Chat{}, err
		}
		if err == nil {
			chat.LastMessage = lo.ToPtr(toMessage(last))
		}
	}
	return chat, nil
}

func loadDirect(txn *badger.Txn, a, b domain.UserID) (domain.Chat, error) {
	item, err := txn.Get([]byte(directKey(a, b)))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Chat{}, errors.ErrChatNotFound
	}
	if err != nil {
		return domain.Chat{}, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return domain.Chat{}, err
	}
	chatID, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return domain.Chat{}, fmt.Errorf("corrupted direct chat index: %w", err)
	}
	return loadChat(txn, domain.ChatID(chatID))
}

func sortByRecency(chats []domain.Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		if chats[i].UpdatedAt.Equal(chats[j].UpdatedAt) {
			return chats[i].ID > chats[j].ID
		}
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
}
