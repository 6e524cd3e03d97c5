// Package archive persists a full store snapshot to SQLite. It is the safe
// output location for the query-serving process: an archive is written in a
// single transaction and can be loaded back into a store.
package archive

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jward/shobo/internal/store"
)

// Archive is the SQLite data access layer for exported snapshots.
type Archive struct {
	db     *sql.DB
	verify func(q querier, s *store.Store) error
}

// Open opens a SQLite database at dbPath with WAL mode enabled.
func Open(dbPath string) (*Archive, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Archive{db: db, verify: verifyCounts}, nil
}

// Close closes the underlying database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

// DB returns the underlying *sql.DB.
func (a *Archive) DB() *sql.DB {
	return a.db
}

// Migrate creates all tables and indexes. Idempotent.
func (a *Archive) Migrate() error {
	if _, err := a.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
  id              TEXT PRIMARY KEY,
  first_name      TEXT NOT NULL,
  last_name       TEXT NOT NULL,
  position        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS operations (
  user_id         TEXT NOT NULL REFERENCES users(id),
  id              TEXT NOT NULL,
  position        INTEGER NOT NULL,
  product_name    TEXT NOT NULL,
  price           REAL NOT NULL,
  added           BOOLEAN NOT NULL,
  purchased       BOOLEAN NOT NULL DEFAULT FALSE,
  reversed_id     TEXT,
  PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_name ON users(first_name, last_name);
CREATE INDEX IF NOT EXISTS idx_operations_product ON operations(product_name);
CREATE INDEX IF NOT EXISTS idx_operations_flags ON operations(added, purchased);
`

// GetMetadata returns the value stored under key, or "" when absent.
func (a *Archive) GetMetadata(key string) (string, error) {
	var value string
	err := a.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %q: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (a *Archive) SetMetadata(key, value string) error {
	return setMetadataTx(a.db, key, value)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}

func setMetadataTx(ex execer, key, value string) error {
	_, err := ex.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}
