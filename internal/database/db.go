package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

var DB *sql.DB

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	audio_path    TEXT NOT NULL,
	timeline_path TEXT NOT NULL,
	style_preset  TEXT,
	priority      INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	current_step  TEXT,
	progress      INTEGER DEFAULT 0,
	error_message TEXT,
	retry_count   INTEGER DEFAULT 0,
	output_dir    TEXT,
	frame_count   INTEGER DEFAULT 0,
	bpm           REAL DEFAULT 0,
	tier          TEXT,
	queued_at     DATETIME NOT NULL,
	started_at    DATETIME,
	completed_at  DATETIME
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, priority, queued_at);
`

// Open opens the sqlite file at dbPath and applies the schema
func Open(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}
	return db, nil
}

// InitDB initializes the shared database connection
func InitDB(dbPath string) error {
	db, err := Open(dbPath)
	if err != nil {
		return err
	}
	DB = db
	logrus.WithField("path", dbPath).Info("Database initialized")
	return nil
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
