package repositories

import (
	"chat-hub/domain"
	"chat-hub/errors"
	"context"
	stderrors "errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

func userKey(id domain.UserID) string { return fmt.Sprintf("user:%d", id) }
func usernameKey(name string) string  { return "username:" + name }

// CreateUser persists a new user. Usernames are unique.
func (s *BadgerStore) CreateUser(_ context.Context, username string) (domain.User, error) {
	id, err := nextID(s.userSeq)
	if err != nil {
		return domain.User{}, err
	}
	user := domain.User{ID: domain.UserID(id), Username: username, CreatedAt: s.now().UTC()}

	err = s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(usernameKey(username))); err == nil {
			return errors.ErrUserAlreadyExists
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set([]byte(usernameKey(username)), []byte(strconv.FormatInt(id, 10))); err != nil {
			return err
		}
		return setRecord(txn, userKey(user.ID), fromUser(user))
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(fromUser(user)), nil
}

func (s *BadgerStore) GetUserByID(_ context.Context, id domain.UserID) (domain.User, error) {
	var record userRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return getRecord(txn, userKey(id), errors.ErrUserNotFound, &record)
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(record), nil
}

// UpdateUser overwrites the mutable fields of an existing user.
func (s *BadgerStore) UpdateUser(_ context.Context, user domain.User) error {
	return s.update(func(txn *badger.Txn) error {
		var current userRecord
		if err := getRecord(txn, userKey(user.ID), errors.ErrUserNotFound, &current); err != nil {
			return err
		}
		next := fromUser(user)
		next.Username = current.Username
		next.CreatedAt = current.CreatedAt
		return setRecord(txn, userKey(user.ID), next)
	})
}
