package domain

import "time"

// User is a registered account. Staff users may modify any book.
type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	IsStaff      bool
	CreatedAt    time.Time
}

// Actor is the identity a request acts as. The zero value is anonymous.
type Actor struct {
	ID       int64
	Username string
	IsStaff  bool
}

// Anonymous is the actor used for requests without credentials.
var Anonymous = Actor{}

// Authenticated reports whether the actor maps to a stored user.
func (a Actor) Authenticated() bool {
	return a.ID != 0
}

// ActorFor builds the request identity for a stored user.
func ActorFor(u User) Actor {
	return Actor{ID: u.ID, Username: u.Username, IsStaff: u.IsStaff}
}
