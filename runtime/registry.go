package runtime

import (
	"chat-hub/domain"
	"sync"
	"time"
)

// Registry maps a live connection handle to the user that joined on it.
// It holds no persistent state and never does I/O.
type Registry struct {
	mu          sync.RWMutex
	connections map[domain.ConnectionID]domain.ConnectionRecord
	now         func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[domain.ConnectionID]domain.ConnectionRecord),
		now:         time.Now,
	}
}

// Register binds connID to the user. A stale record for the same handle is
// overwritten and handed back so the caller can retire its presence.
func (r *Registry) Register(connID domain.ConnectionID, userID domain.UserID, username string) (domain.ConnectionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, replaced := r.connections[connID]
	r.connections[connID] = domain.ConnectionRecord{
		ConnectionID: connID,
		UserID:       userID,
		Username:     username,
		ConnectedAt:  r.now().UTC(),
	}
	return previous, replaced
}

// Unregister removes and returns the record. A disconnect may race with a
// lookup, so an absent handle is not an error.
func (r *Registry) Unregister(connID domain.ConnectionID) (domain.ConnectionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.connections[connID]
	if ok {
		delete(r.connections, connID)
	}
	return record, ok
}

func (r *Registry) Lookup(connID domain.ConnectionID) (domain.ConnectionRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.connections[connID]
	return record, ok
}

// Records returns a snapshot of every live connection.
func (r *Registry) Records() []domain.ConnectionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]domain.ConnectionRecord, 0, len(r.connections))
	for _, record := range r.connections {
		records = append(records, record)
	}
	return records
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}
