package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"github.com/localrag/localrag/internal/errors"
)

const schemaVersion = 1

// openDB opens (or creates) the per-corpus SQLite database.
// WAL mode plus a single connection keeps writers serialized while
// letting reads proceed during checkpoints.
func openDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailure, fmt.Errorf("create store directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailure, fmt.Errorf("open database: %w", err))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores journal parameters in the DSN; pragmas
	// must be issued explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(errors.ErrCodeStoreFailure, fmt.Errorf("set pragma: %w", err))
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		path         TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		content      TEXT NOT NULL,
		size         INTEGER NOT NULL,
		chunk_count  INTEGER NOT NULL,
		indexed_at   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		path        TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content     TEXT NOT NULL,
		embedding   BLOB NOT NULL,
		PRIMARY KEY (path, chunk_index),
		FOREIGN KEY (path) REFERENCES documents(path) ON DELETE CASCADE
	);

	-- FTS5 table maintained by the fts5 lexical backend. Created here so
	-- both backends share one schema and switching is non-destructive.
	CREATE VIRTUAL TABLE IF NOT EXISTS chunk_fts USING fts5(
		path UNINDEXED,
		chunk_index UNINDEXED,
		content,
		tokenize='unicode61'
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, fmt.Errorf("initialize schema: %w", err))
	}
	if _, err := db.Exec(
		`INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', ?)`,
		fmt.Sprint(schemaVersion)); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, fmt.Errorf("record schema version: %w", err))
	}
	return nil
}

// getMeta reads one meta value; returns "" when absent.
func getMeta(db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	return value, nil
}

func setMeta(db *sql.DB, key, value string) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	return nil
}
