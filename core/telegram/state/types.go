package state

import "errors"

// ErrNoSession is returned by Update and Finish when the user has no active session.
var ErrNoSession = errors.New("state: no active session")

// Session is the contract a bot's session type satisfies to live in a Store.
// Clone must return a deep copy so snapshots never alias store-owned data.
type Session[T any] interface {
	Clone() T
}

// Factory builds a fresh session for a user.
type Factory[T any] func(userID int64) T

// IsNoSession reports whether err is or wraps ErrNoSession.
func IsNoSession(err error) bool {
	return errors.Is(err, ErrNoSession)
}
