package store

import (
	"errors"
	"fmt"

	"github.com/jward/shobo/internal/history"
)

// User is an identity plus the history it owns.
type User struct {
	ID        string
	FirstName string
	LastName  string
	History   *history.History
}

// NewUser returns a User with an empty history.
func NewUser(id, firstName, lastName string) *User {
	return &User{ID: id, FirstName: firstName, LastName: lastName, History: history.New()}
}

// Name returns "first last".
func (u *User) Name() string {
	return u.FirstName + " " + u.LastName
}

// ErrUnsafeOutput is returned when a save would overwrite the snapshot the
// store was loaded from.
var ErrUnsafeOutput = errors.New("refusing to overwrite input snapshot")

// LoadError reports a malformed or inconsistent snapshot. UserID and
// OperationID locate the offending record when known.
type LoadError struct {
	UserID      string
	OperationID string
	Reason      string
	Err         error
}

func (e *LoadError) Error() string {
	msg := "load snapshot"
	if e.UserID != "" {
		msg += fmt.Sprintf(": user %q", e.UserID)
	}
	if e.OperationID != "" {
		msg += fmt.Sprintf(": operation %q", e.OperationID)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

// NotFoundError is returned when a user id is not in the store.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("user %q not found", e.ID)
}
