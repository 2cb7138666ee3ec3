package repositories

import (
	"chat-hub/domain"
	"chat-hub/errors"
	"context"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

// Message keys are formatted as "msg:{chat_id}:{id_padded}" so that a prefix
// scan returns a chat's messages in creation order (19-digit zero padding
// keeps lexicographical and numerical order identical).
func messageKey(chatID domain.ChatID, id domain.MessageID) string {
	return fmt.Sprintf("msg:%d:%019d", chatID, id)
}
func messagePrefix(chatID domain.ChatID) string { return fmt.Sprintf("msg:%d:", chatID) }
func messageIndexKey(id domain.MessageID) string {
	return fmt.Sprintf("msgidx:%d", id)
}

// CreateMessage persists a message and bumps the chat's recency.
func (s *BadgerStore) CreateMessage(_ context.Context, message domain.Message) (domain.Message, error) {
	id, err := nextID(s.msgSeq)
	if err != nil {
		return domain.Message{}, err
	}
	message.ID = domain.MessageID(id)
	if message.CreatedAt.IsZero() {
		message.CreatedAt = s.now().UTC()
	}
	if message.Status == "" {
		message.Status = domain.StatusSent
	}

	err = s.update(func(txn *badger.Txn) error {
		var chat chatRecord
		if err := getRecord(txn, chatKey(message.ChatID), errors.ErrChatNotFound, &chat); err != nil {
			return err
		}
		if err := setRecord(txn, messageKey(message.ChatID, message.ID), fromMessage(message)); err != nil {
			return err
		}
		if err := txn.Set([]byte(messageIndexKey(message.ID)), []byte(strconv.FormatInt(int64(message.ChatID), 10))); err != nil {
			return err
		}
		chat.LastMessageID = int64(message.ID)
		chat.UpdatedAt = unixNano(message.CreatedAt)
		return setRecord(txn, chatKey(message.ChatID), chat)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(fromMessage(message)), nil
}

func (s *BadgerStore) GetMessageByID(_ context.Context, id domain.MessageID) (domain.Message, error) {
	var record messageRecord
	err := s.db.View(func(txn *badger.Txn) error {
		key, err := resolveMessageKey(txn, id)
		if err != nil {
			return err
		}
		return getRecord(txn, key, errors.ErrMessageNotFound, &record)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(record), nil
}

func (s *BadgerStore) UpdateMessageStatus(_ context.Context, id domain.MessageID, status domain.MessageStatus) (domain.Message, error) {
	var record messageRecord
	err := s.update(func(txn *badger.Txn) error {
		key, err := resolveMessageKey(txn, id)
		if err != nil {
			return err
		}
		if err = getRecord(txn, key, errors.ErrMessageNotFound, &record); err != nil {
			return err
		}
		record.Status = string(status)
		return setRecord(txn, key, record)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(record), nil
}

// GetChatMessages returns one page of a chat, newest first. Pages start at 1.
func (s *BadgerStore) GetChatMessages(_ context.Context, chatID domain.ChatID, page, size int) ([]domain.Message, error) {
	skip := (page - 1) * size
	messages := make([]domain.Message, 0, size)
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(chatKey(chatID))); err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrChatNotFound
			}
			return err
		}

		prefix := []byte(messagePrefix(chatID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Let's go the newest position msg:7:9999999999999999999
		// Then, we go back one page at a time
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if skip > 0 {
				skip--
				continue
			}
			if len(messages) == size {
				break
			}
			var record messageRecord
			if err := getRecord(txn, string(it.Item().Key()), errors.ErrMessageNotFound, &record); err != nil {
				return err
			}
			messages = append(messages, toMessage(record))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *BadgerStore) deleteMessages(chatID domain.ChatID) error {
	var keys [][]byte
	var ids []domain.MessageID
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(messagePrefix(chatID))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			id, err := strconv.ParseInt(string(key[len(prefix):]), 10, 64)
			if err != nil {
				return fmt.Errorf("corrupted message key %q: %w", key, err)
			}
			keys = append(keys, key)
			ids = append(ids, domain.MessageID(id))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	for i, key := range keys {
		if err = wb.Delete(key); err != nil {
			wb.Cancel()
			return err
		}
		if err = wb.Delete([]byte(messageIndexKey(ids[i]))); err != nil {
			wb.Cancel()
			return err
		}
	}
	if err = wb.Flush(); err != nil {
		return err
	}
	s.log.Debug(fmt.Sprintf("%d messages deleted with chat %d", len(keys), chatID))
	return nil
}

func resolveMessageKey(txn *badger.Txn, id domain.MessageID) (string, error) {
	item, err := txn.Get([]byte(messageIndexKey(id)))
	if err == badger.ErrKeyNotFound {
		return "", errors.ErrMessageNotFound
	}
	if err != nil {
		return "", err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	chatID, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return "", fmt.Errorf("corrupted message index: %w", err)
	}
	return messageKey(domain.ChatID(chatID), id), nil
}
