package store

import (
	"iter"

	"github.com/jward/shobo/internal/history"
)

// Store is the in-memory index over all users. It is built once from a full
// snapshot and never mutated afterwards, so concurrent readers need no locking.
type Store struct {
	users map[string]*User
	order []*User // snapshot order
}

// New builds a Store from users, validating identity and history invariants.
// Any violation is reported as a *LoadError.
func New(users ...*User) (*Store, error) {
	s := &Store{
		users: make(map[string]*User, len(users)),
		order: make([]*User, 0, len(users)),
	}
	for _, u := range users {
		if err := s.insert(u); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) insert(u *User) error {
	if u.ID == "" {
		return &LoadError{Reason: "empty user id"}
	}
	if _, ok := s.users[u.ID]; ok {
		return &LoadError{UserID: u.ID, Reason: "duplicate user id"}
	}
	if u.History == nil {
		return &LoadError{UserID: u.ID, Reason: "missing history"}
	}
	if opID, err := u.History.Validate(); err != nil {
		return &LoadError{UserID: u.ID, OperationID: opID, Err: err}
	}
	s.users[u.ID] = u
	s.order = append(s.order, u)
	return nil
}

// Len returns the number of users.
func (s *Store) Len() int {
	return len(s.order)
}

// Users yields every user in snapshot order.
func (s *Store) Users() iter.Seq[*User] {
	return func(yield func(*User) bool) {
		for _, u := range s.order {
			if !yield(u) {
				return
			}
		}
	}
}

// UserByID returns the user with the given id or a *NotFoundError.
func (s *Store) UserByID(id string) (*User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return u, nil
}

// UserByName returns every user whose "first last" name equals fullName
// exactly. Names are not unique. The result is empty, never nil, when
// nothing matches.
func (s *Store) UserByName(fullName string) []*User {
	matches := []*User{}
	for _, u := range s.order {
		if u.Name() == fullName {
			matches = append(matches, u)
		}
	}
	return matches
}

// Query counts operations matching f per product name. With a userID the
// result is that user's history query; otherwise counts are summed across
// all users.
func (s *Store) Query(f history.Filter, userID *string) (map[string]int, error) {
	if userID != nil {
		u, err := s.UserByID(*userID)
		if err != nil {
			return nil, err
		}
		return u.History.Query(f), nil
	}

	total := make(map[string]int)
	for _, u := range s.order {
		for name, n := range u.History.Query(f) {
			total[name] += n
		}
	}
	return total, nil
}
