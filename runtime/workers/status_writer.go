package workers

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"context"
	"log/slog"
	"time"
)

// StatusUpdate is a presence change to write back to the store.
type StatusUpdate struct {
	UserID   domain.UserID
	IsOnline bool
	At       time.Time
}

// StatusWriter persists presence transitions off the connection path.
//
// Writes are best-effort: a full queue drops the update, a failed write is
// logged. Disconnect cleanup never waits on the store.
type StatusWriter struct {
	log          *slog.Logger
	store        contract.IUserStore
	updates      chan StatusUpdate
	writeTimeout time.Duration
	onWritten    func(userID domain.UserID)
}

// NewStatusWriter builds the worker. onWritten runs after every successful
// write, it is where the caller invalidates what it cached about the user.
func NewStatusWriter(log *slog.Logger, store contract.IUserStore, bufferSize int,
	writeTimeout time.Duration, onWritten func(userID domain.UserID)) *StatusWriter {
	return &StatusWriter{
		log:          log,
		store:        store,
		updates:      make(chan StatusUpdate, bufferSize),
		writeTimeout: writeTimeout,
		onWritten:    onWritten,
	}
}

// Enqueue never blocks.
func (w *StatusWriter) Enqueue(update StatusUpdate) bool {
	select {
	case w.updates <- update:
		return true
	default:
		w.log.Warn("Status queue full, dropping presence write-back",
			"user_id", update.UserID, "online", update.IsOnline)
		return false
	}
}

// Backlog reports the queued updates and the queue capacity. Reading both is
// non-blocking, the values are a sample.
func (w *StatusWriter) Backlog() (int, int) {
	return len(w.updates), cap(w.updates)
}

func (w *StatusWriter) Run(ctx context.Context) error {
	for {
		select {
		case update := <-w.updates:
			w.write(ctx, update)
		case <-ctx.Done():
			w.drain()
			w.log.Debug("Context done, stopping status writer")
			return nil
		}
	}
}

// drain flushes what is already queued with a fresh deadline each.
func (w *StatusWriter) drain() {
	for {
		select {
		case update := <-w.updates:
			w.write(context.Background(), update)
		default:
			return
		}
	}
}

func (w *StatusWriter) write(ctx context.Context, update StatusUpdate) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.writeTimeout)
	defer cancel()

	user, err := w.store.GetUserByID(ctx, update.UserID)
	if err != nil {
		w.log.Warn("Presence write-back skipped", "user_id", update.UserID, "error", err)
		return
	}
	user.IsOnline = update.IsOnline
	if !update.IsOnline {
		user.LastSeen = update.At
	}
	if err = w.store.UpdateUser(ctx, user); err != nil {
		w.log.Warn("Presence write-back failed", "user_id", update.UserID, "error", err)
		return
	}
	if w.onWritten != nil {
		w.onWritten(update.UserID)
	}
}
