// Package store persists sessions and agent activities to SQLite and
// answers time-range queries over them.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/promptops/agentpulse/internal/errs"
)

// DB wraps a sql.DB connection to the agentpulse SQLite database. writeMu
// gives every session/activity write an exclusive path, so concurrent
// partial merges against the same id cannot interleave.
type DB struct {
	conn    *sql.DB
	writeMu sync.Mutex
}

// Open opens or creates the SQLite database at the given path.
// It creates the parent directory if it does not exist.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &errs.StorageError{Op: "open", Err: err}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &errs.StorageError{Op: "open", Err: err}
	}

	// WAL mode for better concurrent read performance.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, &errs.StorageError{Op: "open", Err: err}
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = conn.Close()
		return nil, &errs.StorageError{Op: "open", Err: err}
	}

	db := &DB{conn: conn}

	if err := db.Migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

// OpenInMemory opens an in-memory SQLite database, useful for testing.
func OpenInMemory() (*DB, error) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, &errs.StorageError{Op: "open", Err: err}
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = conn.Close()
		return nil, &errs.StorageError{Op: "open", Err: err}
	}

	db := &DB{conn: conn}
	if err := db.Migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Flush forces all pending writes through to the persistence medium. It is
// called on shutdown paths, including error paths, so buffered state is
// never lost with the process.
func (db *DB) Flush() error {
	// The checkpoint pragma reports its result as a row; drain it.
	rows, err := db.conn.Query("PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return &errs.StorageError{Op: "flush", Err: err}
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return &errs.StorageError{Op: "flush", Err: err}
	}
	return nil
}
