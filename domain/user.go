package domain

import "time"

type UserID int64

type User struct {
	ID        UserID
	Username  string
	IsOnline  bool
	LastSeen  time.Time
	CreatedAt time.Time
}

// OnlineUser is the public projection of a live user.
type OnlineUser struct {
	UserID   UserID `json:"userId"`
	Username string `json:"username"`
}
