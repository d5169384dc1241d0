package kv

import (
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a transactional key-value store over named tables with raw byte
// keys, backed by SQLite. Keys within a table are unique and ordered by
// their byte representation.
type Store struct {
	db *sql.DB
}

var tableNameRegexp = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// Open creates a new store at the given path with WAL mode and recommended pragmas.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open kv store: %w", err)
	}
	// Serialize transactions through a single connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping kv store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureTable creates the named table if it does not exist.
func (s *Store) EnsureTable(name string) error {
	if !tableNameRegexp.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	_, err := s.db.Exec(fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS kv_%s (k BLOB PRIMARY KEY, v BLOB NOT NULL) WITHOUT ROWID`, name))
	if err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	return nil
}

// Tx is an open transaction. All reads and writes inside the closure passed
// to View or Update see a consistent snapshot and commit atomically.
type Tx struct {
	tx *sql.Tx
}

// Update runs fn inside a read-write transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
func (s *Store) Update(fn func(*Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Tx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// View runs fn inside a read-only transaction.
func (s *Store) View(fn func(*Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return fn(&Tx{tx: tx})
}

// Get returns the value stored under key, or nil if the key is absent.
func (t *Tx) Get(table string, key []byte) ([]byte, error) {
	var v []byte
	err := t.tx.QueryRow(fmt.Sprintf(`SELECT v FROM kv_%s WHERE k = ?`, table), key).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Set stores value under key, replacing any existing value.
func (t *Tx) Set(table string, key, value []byte) error {
	_, err := t.tx.Exec(fmt.Sprintf(
		`INSERT INTO kv_%s (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`, table),
		key, value)
	return err
}

// Delete removes key. Deleting an absent key is not an error.
func (t *Tx) Delete(table string, key []byte) error {
	_, err := t.tx.Exec(fmt.Sprintf(`DELETE FROM kv_%s WHERE k = ?`, table), key)
	return err
}

// Range visits entries in ascending key order. lo is inclusive, hi is
// exclusive; a nil bound leaves that side open. fn returns false to stop
// the scan early.
func (t *Tx) Range(table string, lo, hi []byte, fn func(key, value []byte) (bool, error)) error {
	query := fmt.Sprintf(`SELECT k, v FROM kv_%s`, table)
	var args []any
	switch {
	case lo != nil && hi != nil:
		query += ` WHERE k >= ? AND k < ?`
		args = append(args, lo, hi)
	case lo != nil:
		query += ` WHERE k >= ?`
		args = append(args, lo)
	case hi != nil:
		query += ` WHERE k < ?`
		args = append(args, hi)
	}
	query += ` ORDER BY k ASC`

	rows, err := t.tx.Query(query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		cont, err := fn(k, v)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return rows.Err()
}
