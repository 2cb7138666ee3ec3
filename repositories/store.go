package repositories

import (
	"chat-hub/contract"
	"chat-hub/errors"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

const sequenceBandwidth = 100

var _ contract.IStore = (*BadgerStore)(nil)

// BadgerStore is the Persistence Store backed by BadgerDB.
//
// Key layout:
//
//	user:{id}                      user record
//	username:{name}                user id
//	chat:{id}                      chat record with its participants
//	member:{userID}:{chatID}       membership index
//	direct:{min}:{max}             id of the 1:1 chat of two users
//	msg:{chatID}:{id padded 19}    message record, ordered by id
//	msgidx:{id}                    chat id of a message
type BadgerStore struct {
	db      *badger.DB
	log     *slog.Logger
	userSeq *badger.Sequence
	chatSeq *badger.Sequence
	msgSeq  *badger.Sequence
	now     func() time.Time
	ownsDB  bool
}

// NewBadgerStore uses an already opened database. The caller keeps ownership of db.
func NewBadgerStore(db *badger.DB, log *slog.Logger) (*BadgerStore, error) {
	s := &BadgerStore{db: db, log: log, now: time.Now}
	var err error
	if s.userSeq, err = db.GetSequence([]byte("seq:user"), sequenceBandwidth); err != nil {
		return nil, fmt.Errorf("user sequence: %w", err)
	}
	if s.chatSeq, err = db.GetSequence([]byte("seq:chat"), sequenceBandwidth); err != nil {
		return nil, fmt.Errorf("chat sequence: %w", err)
	}
	if s.msgSeq, err = db.GetSequence([]byte("seq:msg"), sequenceBandwidth); err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return s, nil
}

// OpenBadgerStore opens the database at path and owns it.
func OpenBadgerStore(path string, log *slog.Logger) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	s, err := NewBadgerStore(db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// DB exposes the database to read-only tooling.
func (s *BadgerStore) DB() *badger.DB {
	return s.db
}

// Close releases the unused part of the id leases, then the database if owned.
func (s *BadgerStore) Close() error {
	for _, seq := range []*badger.Sequence{s.userSeq, s.chatSeq, s.msgSeq} {
		if err := seq.Release(); err != nil {
			s.log.Warn("Failed to release sequence", "error", err)
		}
	}
	if s.ownsDB {
		s.log.Info("Closing BadgerDB...")
		return s.db.Close()
	}
	return nil
}

func nextID(seq *badger.Sequence) (int64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	// Sequences start at 0, ids start at 1.
	return int64(n) + 1, nil
}

func getRecord(txn *badger.Txn, key string, notFound error, out any) error {
	item, err := txn.Get([]byte(key))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return notFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, out)
	})
}

func setRecord(txn *badger.Txn, key string, record any) error {
	bytes, err := cbor.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set([]byte(key), bytes)
}

// update retries once on a write conflict, Badger's optimistic transactions
// abort the later of two writers touching the same key.
func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	err := s.db.Update(fn)
	if stderrors.Is(err, badger.ErrConflict) {
		s.log.Debug("Transaction conflict, retrying")
		err = s.db.Update(fn)
	}
	return err
}

func isNotFound(err error) bool {
	return stderrors.Is(err, errors.ErrNotFound)
}
