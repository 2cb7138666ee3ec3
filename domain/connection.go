package domain

import "time"

// ConnectionID is the opaque handle the Transport issues for one live session.
type ConnectionID string

// ConnectionRecord binds a live connection to the user who joined on it.
type ConnectionRecord struct {
	ConnectionID ConnectionID
	UserID       UserID
	Username     string
	ConnectedAt  time.Time
}

// Transition is the presence change caused by a connect or a disconnect.
type Transition int

const (
	AlreadyOnline Transition = iota
	BecameOnline
	StillOnline
	BecameOffline
)

func (t Transition) String() string {
	switch t {
	case BecameOnline:
		return "BecameOnline"
	case StillOnline:
		return "StillOnline"
	case BecameOffline:
		return "BecameOffline"
	default:
		return "AlreadyOnline"
	}
}

// Observable reports whether the transition must be broadcast.
func (t Transition) Observable() bool {
	return t == BecameOnline || t == BecameOffline
}
