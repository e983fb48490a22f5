// Package history stores finished playback sessions in SQLite.
package history

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// One writer; sessions are recorded from the controller goroutine only.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return db, nil
}

func (db *DB) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		department TEXT NOT NULL,
		mode TEXT NOT NULL,
		reason TEXT NOT NULL,
		target_fps REAL NOT NULL,
		average_fps REAL,
		underrun INTEGER NOT NULL,
		ticks INTEGER NOT NULL,
		delivered INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		missing_files INTEGER NOT NULL,
		retargets INTEGER NOT NULL,
		paused_ms INTEGER NOT NULL,
		start_index INTEGER NOT NULL,
		last_index INTEGER NOT NULL,
		error TEXT,
		host_total_mb INTEGER,
		host_available_mb INTEGER,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
	`
	_, err := db.conn.Exec(query)
	return err
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}
