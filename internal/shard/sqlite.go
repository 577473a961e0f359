package shard

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is a UnitStore backed by a SQLite database. Used when the host
// wants the ledger durable across process restarts.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// Open is idempotent - safe to call multiple times on the same path.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite-backed unit store at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open unit store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect unit store: %w", err)
	}

	// SQLite only supports one writer at a time; the ledger is single-writer
	// per turn anyway, so a single connection avoids SQLITE_BUSY entirely.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Read implements UnitStore.
func (s *SQLite) Read(name string) (string, bool, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM units WHERE name = ?`, name).Scan(&payload)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read unit %q: %w", name, err)
	}
	return payload, true, nil
}

// Write implements UnitStore.
func (s *SQLite) Write(name, payload string) error {
	_, err := s.db.Exec(`
		INSERT INTO units (name, payload) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET payload = excluded.payload
	`, name, payload)
	if err != nil {
		return fmt.Errorf("write unit %q: %w", name, err)
	}
	return nil
}

// Delete implements UnitStore.
func (s *SQLite) Delete(name string) error {
	if _, err := s.db.Exec(`DELETE FROM units WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete unit %q: %w", name, err)
	}
	return nil
}
