package shobo

import (
	"fmt"
	"iter"

	"github.com/jward/shobo/internal/store"
)

// QueryBuilder provides the aggregate query API over the Store.
type QueryBuilder struct {
	store *store.Store
}

// Query counts matching operations per product name across all users.
func (q *QueryBuilder) Query(f Filter) (map[string]int, error) {
	counts, err := q.store.Query(f, nil)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return counts, nil
}

// QueryUser counts matching operations per product name in one user's
// history. An unknown id yields *NotFoundError.
func (q *QueryBuilder) QueryUser(userID string, f Filter) (map[string]int, error) {
	counts, err := q.store.Query(f, &userID)
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return counts, nil
}

// UserByID returns a handle for the user with the given id.
func (q *QueryBuilder) UserByID(id string) (*User, error) {
	u, err := q.store.UserByID(id)
	if err != nil {
		return nil, err
	}
	return &User{user: u, q: q}, nil
}

// UserByName returns handles for every user whose "first last" name matches
// exactly, in snapshot order. No match yields an empty slice.
func (q *QueryBuilder) UserByName(fullName string) []*User {
	matches := q.store.UserByName(fullName)
	users := make([]*User, len(matches))
	for i, u := range matches {
		users[i] = &User{user: u, q: q}
	}
	return users
}

// Users yields a handle for every user in snapshot order.
func (q *QueryBuilder) Users() iter.Seq[*User] {
	return func(yield func(*User) bool) {
		for u := range q.store.Users() {
			if !yield(&User{user: u, q: q}) {
				return
			}
		}
	}
}

// User is a read-only handle bound to one user id. Queries through it are
// scoped to that user.
type User struct {
	user *store.User
	q    *QueryBuilder
}

func (u *User) ID() string        { return u.user.ID }
func (u *User) FirstName() string { return u.user.FirstName }
func (u *User) LastName() string  { return u.user.LastName }
func (u *User) Name() string      { return u.user.Name() }

// History yields the user's operations in insertion order.
func (u *User) History() iter.Seq[Operation] {
	return u.user.History.All()
}

// Query is QueryUser bound to this user.
func (u *User) Query(f Filter) (map[string]int, error) {
	return u.q.QueryUser(u.user.ID, f)
}
