package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"studydeck/utils"

	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
)

// DB is the SQLite-backed store of the forum. It implements every storage
// collaborator the engine consumes.
type DB struct {
	db   *sql.DB
	path string
}

// Open initializes the database connection and ensures the schema exists.
//
// SQLite allows one writer at a time, so the pool is limited to a single
// connection and every transaction starts IMMEDIATE. Two transactions can
// therefore never interleave their read-then-write steps.
func Open(dbPath string) (*DB, error) {
	// Ensure the directory for the database file exists.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	utils.Info("Database", "Open", fmt.Sprintf("connected to database at %s", dbPath))
	return &DB{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Ping checks that the database file is still reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Path returns the file backing the store.
func (d *DB) Path() string { return d.path }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL,
        slug TEXT NOT NULL UNIQUE
    );`,
	`CREATE TABLE IF NOT EXISTS threads (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
        title TEXT NOT NULL,
        raw_content TEXT NOT NULL DEFAULT '',
        content TEXT NOT NULL DEFAULT '',
        author_id INTEGER NOT NULL,
        created_at INTEGER NOT NULL,
        upvote_count INTEGER NOT NULL DEFAULT 0 CHECK (upvote_count >= 0),
        is_locked BOOLEAN NOT NULL DEFAULT FALSE,
        is_deleted BOOLEAN NOT NULL DEFAULT FALSE
    );`,
	`CREATE TABLE IF NOT EXISTS replies (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        thread_id INTEGER NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
        author_id INTEGER NOT NULL,
        raw_content TEXT NOT NULL DEFAULT '',
        content TEXT NOT NULL DEFAULT '',
        created_at INTEGER NOT NULL,
        upvote_count INTEGER NOT NULL DEFAULT 0 CHECK (upvote_count >= 0),
        is_deleted BOOLEAN NOT NULL DEFAULT FALSE
    );`,
	`CREATE TABLE IF NOT EXISTS tags (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL UNIQUE,
        color TEXT NOT NULL DEFAULT ''
    );`,
	`CREATE TABLE IF NOT EXISTS thread_tags (
        thread_id INTEGER NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
        tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
        PRIMARY KEY (thread_id, tag_id)
    );`,
	`CREATE TABLE IF NOT EXISTS thread_courses (
        thread_id INTEGER NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
        course_id INTEGER NOT NULL,
        PRIMARY KEY (thread_id, course_id)
    );`,
	// Shingle rows are not tied to threads by a foreign key; the index
	// owns them and the orphan purge job cleans up after hard deletes.
	`CREATE TABLE IF NOT EXISTS thread_trigrams (
        thread_id INTEGER NOT NULL,
        value TEXT NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS votes (
        target_kind TEXT NOT NULL,
        target_id INTEGER NOT NULL,
        voter_id INTEGER NOT NULL,
        PRIMARY KEY (target_kind, target_id, voter_id)
    );`,
	`CREATE TABLE IF NOT EXISTS reports (
        id TEXT PRIMARY KEY,
        reporter_id INTEGER NOT NULL,
        thread_id INTEGER REFERENCES threads(id) ON DELETE CASCADE,
        reply_id INTEGER REFERENCES replies(id) ON DELETE CASCADE,
        reason TEXT NOT NULL,
        status TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'RESOLVED')),
        created_at INTEGER NOT NULL,
        CHECK ((thread_id IS NULL) <> (reply_id IS NULL))
    );`,
}

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_threads_category_created ON threads(category_id, created_at);",
	"CREATE INDEX IF NOT EXISTS idx_replies_thread ON replies(thread_id, created_at);",
	"CREATE INDEX IF NOT EXISTS idx_trigrams_value ON thread_trigrams(value);",
	"CREATE INDEX IF NOT EXISTS idx_trigrams_thread ON thread_trigrams(thread_id);",
	"CREATE INDEX IF NOT EXISTS idx_reports_reporter_created ON reports(reporter_id, created_at);",
	"CREATE INDEX IF NOT EXISTS idx_reports_status_created ON reports(status, created_at);",
}

// createTables creates all necessary tables and indexes.
func createTables(db *sql.DB) error {
	for _, query := range schema {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	for _, indexQuery := range indexes {
		if _, err := db.Exec(indexQuery); err != nil {
			utils.Warn("Database", "CreateIndex", fmt.Sprintf("failed to create index: %v", err))
		}
	}
	return nil
}

// withTx runs fn inside one transaction. The connection pool holds a single
// connection, so fn must only use tx and never d.db.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func unixNano(t time.Time) int64 { return t.UnixNano() }

func fromUnixNano(n int64) time.Time { return time.Unix(0, n) }

// placeholders returns "?,?,?" for n arguments.
func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	b := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
