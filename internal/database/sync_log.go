package database

import (
	"context"
	"fmt"
	"time"

	"shelfsync/internal/models"
)

// AppendSyncLog writes one immutable audit record for a processing attempt.
func (db *DB) AppendSyncLog(ctx context.Context, entry *models.SyncLogEntry) error {
	now := time.Now()
	query := `INSERT INTO sync_log (queue_item_id, subject_id, target_id, operation, status, error_code, error_message, duration_ms, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.db.ExecContext(ctx, query,
		entry.QueueItemID, entry.SubjectID, entry.TargetID, entry.Operation,
		entry.Status, entry.ErrorCode, entry.ErrorMessage, entry.DurationMs, now,
	)
	if err != nil {
		return fmt.Errorf("failed to append sync log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	entry.CreatedAt = now
	return nil
}

// GetSyncLog returns all attempts for one queue item, oldest first.
func (db *DB) GetSyncLog(ctx context.Context, queueItemID int64) ([]models.SyncLogEntry, error) {
	query := `SELECT id, queue_item_id, subject_id, target_id, operation, status, error_code, error_message, duration_ms, created_at
              FROM sync_log WHERE queue_item_id = ? ORDER BY created_at ASC, id ASC`
	return db.querySyncLog(ctx, query, queueItemID)
}

// GetRecentSyncLog returns the newest limit entries across all items.
func (db *DB) GetRecentSyncLog(ctx context.Context, limit int) ([]models.SyncLogEntry, error) {
	query := `SELECT id, queue_item_id, subject_id, target_id, operation, status, error_code, error_message, duration_ms, created_at
              FROM sync_log ORDER BY created_at DESC, id DESC LIMIT ?`
	return db.querySyncLog(ctx, query, limit)
}

func (db *DB) querySyncLog(ctx context.Context, query string, args ...interface{}) ([]models.SyncLogEntry, error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync log: %w", err)
	}
	defer rows.Close()

	var entries []models.SyncLogEntry
	for rows.Next() {
		var e models.SyncLogEntry
		err := rows.Scan(
			&e.ID, &e.QueueItemID, &e.SubjectID, &e.TargetID, &e.Operation,
			&e.Status, &e.ErrorCode, &e.ErrorMessage, &e.DurationMs, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
