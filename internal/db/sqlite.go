// Package db opens the sqlite session store.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens the database at dbPath, creating its directory if needed, and
// runs the schema migrations.
func Open(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return conn, nil
}

func migrate(conn *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS shell_sessions (
		id TEXT PRIMARY KEY,
		shell TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		exit_code INTEGER,
		pid INTEGER,
		remote_addr TEXT NOT NULL DEFAULT '',
		recording_path TEXT NOT NULL DEFAULT '',
		preview_line TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		ended_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_shell_sessions_status ON shell_sessions(status);
	CREATE INDEX IF NOT EXISTS idx_shell_sessions_created_at ON shell_sessions(created_at);
	`

	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// NewTestDB creates a fresh in-memory database for tests.
func NewTestDB() (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open test database: %w", err)
	}
	// Each pooled connection to :memory: is a separate database.
	conn.SetMaxOpenConns(1)

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return conn, nil
}
