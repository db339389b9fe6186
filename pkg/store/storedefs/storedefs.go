// Package storedefs contains definitions of the store API.
//
// It is a separate package so that packages that only depend on the store API
// do not need to depend on the concrete implementation.
package storedefs

import (
	"errors"
	"time"
)

// ErrNoMatchingLogin is returned when a login query completes with no
// result.
var ErrNoMatchingLogin = errors.New("no matching login")

// Store is an interface satisfied by the storage service.
type Store interface {
	AddLogin(l Login) (int, error)
	Login(seq int) (Login, error)
	// Logins returns up to n of the most recent logins, newest first. A
	// non-positive n returns all of them.
	Logins(n int) ([]Login, error)
	Close() error
}

// Outcome of a connection attempt.
type Outcome string

// Possible values of Outcome.
const (
	Accepted     Outcome = "accepted"
	Rejected     Outcome = "rejected"
	NoHandshake  Outcome = "no-handshake"
	Disconnected Outcome = "disconnected"
)

// Login is an entry in the login log.
type Login struct {
	Seq     int       `json:"-"`
	Time    time.Time `json:"time"`
	Remote  string    `json:"remote"`
	Session string    `json:"session"`
	Outcome Outcome   `json:"outcome"`
}
