package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS user (
	username TEXT PRIMARY KEY,
	password TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS client (
	id TEXT PRIMARY KEY,
	secret TEXT NOT NULL,
	label TEXT NOT NULL,
	scopes TEXT NOT NULL, -- space-delimited
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_code (
	code TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	scopes TEXT NOT NULL, -- space-delimited
	expires_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (username) REFERENCES user(username) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS process_event (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	process_id TEXT NOT NULL,
	generation INTEGER NOT NULL,
	kind TEXT NOT NULL,
	pid INTEGER,
	exit_code INTEGER,
	detail TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_process_events_process_id ON process_event(process_id);
CREATE INDEX IF NOT EXISTS idx_process_events_kind ON process_event(kind);
CREATE INDEX IF NOT EXISTS idx_auth_codes_expires_at ON auth_code(expires_at);
`

type DB struct {
	*sqlx.DB
}

func New(dbPath string) (*DB, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Enable WAL mode for better concurrency (allows concurrent reads/writes)
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set busy timeout to handle concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Create tables
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
