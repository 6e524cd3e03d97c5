package archive

import (
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jward/shobo/internal/history"
	"github.com/jward/shobo/internal/store"
)

// Metadata keys written with every export.
const (
	MetaExportID   = "export_id"
	MetaExportedAt = "exported_at"
	MetaSource     = "source"
	MetaUserCount  = "user_count"
)

// WriteStore replaces the archive contents with s inside a single
// transaction and returns the generated export id. source is recorded as
// metadata and may be empty. Before committing, the purchased, added and
// removed counts are re-run in SQL and compared with s; a difference aborts
// the write with ErrCountMismatch.
//
// Insert order respects FK dependencies: users first, then their operations
// in history order.
func (a *Archive) WriteStore(s *store.Store, source string) (string, error) {
	tx, err := a.db.Begin()
	if err != nil {
		return "", fmt.Errorf("write store: begin: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM operations",
		"DELETE FROM users",
	} {
		if _, err := tx.Exec(q); err != nil {
			return "", fmt.Errorf("write store: clear: %w", err)
		}
	}

	userPos := 0
	for u := range s.Users() {
		if err := insertUserTx(tx, u, userPos); err != nil {
			return "", fmt.Errorf("write store: user %q: %w", u.ID, err)
		}
		userPos++

		opPos := 0
		for op := range u.History.All() {
			if err := insertOperationTx(tx, u.ID, op, opPos); err != nil {
				return "", fmt.Errorf("write store: operation %q: %w", op.ID, err)
			}
			opPos++
		}
	}

	exportID := uuid.NewString()
	for _, kv := range [][2]string{
		{MetaExportID, exportID},
		{MetaExportedAt, time.Now().UTC().Format(time.RFC3339)},
		{MetaSource, source},
		{MetaUserCount, fmt.Sprint(userPos)},
	} {
		if err := setMetadataTx(tx, kv[0], kv[1]); err != nil {
			return "", fmt.Errorf("write store: %w", err)
		}
	}

	// Checked before commit so a bad write leaves the previous export intact.
	if err := a.verify(tx, s); err != nil {
		return "", fmt.Errorf("write store: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write store: commit: %w", err)
	}
	return exportID, nil
}

func insertUserTx(tx *sql.Tx, u *store.User, position int) error {
	_, err := tx.Exec(
		"INSERT INTO users (id, first_name, last_name, position) VALUES (?, ?, ?, ?)",
		u.ID, u.FirstName, u.LastName, position,
	)
	return err
}

func insertOperationTx(tx *sql.Tx, userID string, op history.Operation, position int) error {
	_, err := tx.Exec(
		`INSERT INTO operations (user_id, id, position, product_name, price, added, purchased, reversed_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, op.ID, position, op.ProductName, op.Price,
		op.Kind == history.Added, op.Purchased, op.ReversedID,
	)
	return err
}

// ReadStore loads the archive back into a validated Store. Problems with the
// stored records are reported as *store.LoadError.
func (a *Archive) ReadStore() (*store.Store, error) {
	rows, err := a.db.Query("SELECT id, first_name, last_name FROM users ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("read store: query users: %w", err)
	}
	var users []*store.User
	byID := make(map[string]*store.User)
	for rows.Next() {
		var id, first, last string
		if err := rows.Scan(&id, &first, &last); err != nil {
			rows.Close()
			return nil, fmt.Errorf("read store: scan user: %w", err)
		}
		u := store.NewUser(id, first, last)
		users = append(users, u)
		byID[id] = u
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read store: users: %w", err)
	}

	rows, err = a.db.Query(
		`SELECT user_id, id, product_name, price, added, purchased, reversed_id
		 FROM operations ORDER BY user_id, position`,
	)
	if err != nil {
		return nil, fmt.Errorf("read store: query operations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			userID   string
			op       history.Operation
			isAdded  bool
			reversed sql.NullString
		)
		if err := rows.Scan(&userID, &op.ID, &op.ProductName, &op.Price, &isAdded, &op.Purchased, &reversed); err != nil {
			return nil, fmt.Errorf("read store: scan operation: %w", err)
		}
		if !isAdded {
			op.Kind = history.Removed
		}
		if reversed.Valid {
			op.ReversedID = &reversed.String
		}
		u, ok := byID[userID]
		if !ok {
			return nil, &store.LoadError{UserID: userID, OperationID: op.ID, Reason: "operation for unknown user"}
		}
		if err := u.History.Add(op); err != nil {
			return nil, &store.LoadError{UserID: userID, OperationID: op.ID, Err: err}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read store: operations: %w", err)
	}

	return store.New(users...)
}

// Counts runs the store query semantics as SQL aggregation. It exists so the
// archive can be inspected with the same filters the in-memory engine uses.
func (a *Archive) Counts(f history.Filter, userID *string) (map[string]int, error) {
	return counts(a.db, f, userID)
}

func counts(q querier, f history.Filter, userID *string) (map[string]int, error) {
	f = f.Normalize()

	where := []string{"added = ?", "purchased = ?"}
	args := []any{f.Added, f.Purchased}
	if f.ProductName != nil {
		where = append(where, "product_name = ?")
		args = append(args, *f.ProductName)
	}
	if f.PriceAbove != nil {
		where = append(where, "price >= ?")
		args = append(args, *f.PriceAbove)
	}
	if f.PriceBelow != nil {
		where = append(where, "price <= ?")
		args = append(args, *f.PriceBelow)
	}
	if userID != nil {
		var exists int
		err := q.QueryRow("SELECT COUNT(*) FROM users WHERE id = ?", *userID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("counts: lookup user: %w", err)
		}
		if exists == 0 {
			return nil, &store.NotFoundError{ID: *userID}
		}
		where = append(where, "user_id = ?")
		args = append(args, *userID)
	}

	rows, err := q.Query(
		"SELECT product_name, COUNT(*) FROM operations WHERE "+strings.Join(where, " AND ")+" GROUP BY product_name",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("counts: scan: %w", err)
		}
		counts[name] = n
	}
	return counts, rows.Err()
}

// ErrCountMismatch is returned when the archive answers a query differently
// from the store it was written from.
var ErrCountMismatch = errors.New("archive counts differ from store")

// verifyFilters are the queries compared after every write.
var verifyFilters = []history.Filter{{Purchased: true}, {Added: true}, {}}

func verifyCounts(q querier, s *store.Store) error {
	for _, f := range verifyFilters {
		want, err := s.Query(f, nil)
		if err != nil {
			return err
		}
		got, err := counts(q, f, nil)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		if !maps.Equal(want, got) {
			return fmt.Errorf("verify purchased=%t added=%t: archive %v, store %v: %w",
				f.Purchased, f.Added, got, want, ErrCountMismatch)
		}
	}
	return nil
}
