package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"shelfsync/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type DB struct {
	db         *sql.DB
	logger     zerolog.Logger
	maxRetries int
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "database").Logger()
	}
	log.Info().Str("path", path).Msg("database initialized")

	return &DB{db: db, logger: log, maxRetries: models.DefaultMaxRetries}, nil
}

// SetMaxRetries overrides the retry budget stamped onto newly enqueued
// items. Existing rows keep the budget they were created with.
func (db *DB) SetMaxRetries(n int) {
	if n > 0 {
		db.maxRetries = n
	}
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS products (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            code TEXT UNIQUE NOT NULL,
            name TEXT NOT NULL,
            price REAL NOT NULL DEFAULT 0,
            currency TEXT NOT NULL DEFAULT 'EUR',
            unit TEXT,
            barcode TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS stores (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            external_code TEXT UNIQUE NOT NULL,
            timezone TEXT NOT NULL DEFAULT 'UTC',
            active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            uid TEXT NOT NULL,
            subject_id INTEGER NOT NULL,
            target_id INTEGER NOT NULL,
            operation TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            max_retries INTEGER NOT NULL DEFAULT 3,
            error_message TEXT,
            error_details TEXT,
            scheduled_at DATETIME NOT NULL,
            processed_at DATETIME,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS sync_log (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            queue_item_id INTEGER NOT NULL,
            subject_id INTEGER NOT NULL,
            target_id INTEGER NOT NULL,
            operation TEXT NOT NULL,
            status TEXT NOT NULL,
            error_code TEXT,
            error_message TEXT,
            duration_ms INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS price_adjustment_schedules (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            uid TEXT NOT NULL,
            target_id INTEGER NOT NULL,
            name TEXT,
            products TEXT NOT NULL,
            start_date DATETIME NOT NULL,
            end_date DATETIME,
            repeat_type TEXT NOT NULL DEFAULT 'none',
            trigger_days TEXT,
            time_slots TEXT NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            next_trigger_at DATETIME,
            last_triggered_at DATETIME,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// At most one pending item per (subject, target, operation).
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_queue_pending_dedup
            ON sync_queue(subject_id, target_id, operation) WHERE status = 'pending'`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, scheduled_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_log_queue_item ON sync_log(queue_item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_schedules_due ON price_adjustment_schedules(is_active, next_trigger_at)`,
		`CREATE INDEX IF NOT EXISTS idx_schedules_target ON price_adjustment_schedules(target_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}
