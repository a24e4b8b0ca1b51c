package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
}

// Init opens the database and runs migrations.
func Init(path string) (*DB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	// foreign_keys is per connection, so it rides on the DSN
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// WAL so `stats` can read while a split is recording
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &DB{db}
	// Single connection: pragmas are per connection and writes never contend
	db.SetMaxOpenConns(1)

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

// PruneRuns deletes all but the newest keep runs. Entries go with their run.
func (d *DB) PruneRuns(keep int) (int64, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be at least 1, got %d", keep)
	}
	res, err := d.Exec(`DELETE FROM runs WHERE id NOT IN (
		SELECT id FROM runs ORDER BY finished_at DESC, rowid DESC LIMIT ?
	)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source_root TEXT NOT NULL,
			output_root TEXT NOT NULL,
			seed INTEGER NOT NULL,
			train_ratio REAL NOT NULL,
			profile TEXT NOT NULL,
			written INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS entries (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			split TEXT NOT NULL,
			label TEXT NOT NULL,
			stem TEXT NOT NULL,
			source TEXT NOT NULL,
			source_rate INTEGER,
			source_channels INTEGER,
			duration_s REAL,
			PRIMARY KEY (run_id, split, label, stem)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_entries_label ON entries (run_id, label, split);`,
		`CREATE TABLE IF NOT EXISTS failures (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			split TEXT NOT NULL,
			label TEXT NOT NULL,
			source TEXT NOT NULL,
			kind TEXT NOT NULL,
			message TEXT
		);`,
	}

	for _, q := range queries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("exec error: %w query: %s", err, q)
		}
	}

	return nil
}
