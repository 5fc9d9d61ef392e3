package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"shelfsync/internal/models"

	"github.com/google/uuid"
)

const syncQueueColumns = `id, uid, subject_id, target_id, operation, status, retry_count, max_retries,
        error_message, error_details, scheduled_at, processed_at, created_at`

// Enqueue inserts a pending queue item unless one already exists for the
// same (subject, target, operation) triple. It returns the item and
// whether a new row was created.
func (db *DB) Enqueue(ctx context.Context, subjectID, targetID int64, operation string) (*models.SyncQueueItem, bool, error) {
	if !models.ValidOperation(operation) {
		return nil, false, fmt.Errorf("unknown operation: %s", operation)
	}

	if existing, err := db.findPending(ctx, subjectID, targetID, operation); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	now := time.Now()
	item := &models.SyncQueueItem{
		UID:         uuid.NewString(),
		SubjectID:   subjectID,
		TargetID:    targetID,
		Operation:   operation,
		Status:      models.QueuePending,
		MaxRetries:  db.maxRetries,
		ScheduledAt: now,
		CreatedAt:   now,
	}

	query := `INSERT INTO sync_queue (uid, subject_id, target_id, operation, status, retry_count, max_retries, scheduled_at, created_at)
              VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)`
	result, err := db.db.ExecContext(ctx, query,
		item.UID, item.SubjectID, item.TargetID, item.Operation, item.Status, item.MaxRetries, item.ScheduledAt, item.CreatedAt,
	)
	if err != nil {
		// Lost a race against a concurrent enqueue of the same triple;
		// the partial unique index rejected the duplicate.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			existing, ferr := db.findPending(ctx, subjectID, targetID, operation)
			if ferr != nil {
				return nil, false, ferr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("failed to enqueue sync item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get last insert id: %w", err)
	}
	item.ID = id

	return item, true, nil
}

func (db *DB) findPending(ctx context.Context, subjectID, targetID int64, operation string) (*models.SyncQueueItem, error) {
	query := `SELECT ` + syncQueueColumns + ` FROM sync_queue
              WHERE subject_id = ? AND target_id = ? AND operation = ? AND status = 'pending'`
	item, err := db.scanQueueItem(db.db.QueryRowContext(ctx, query, subjectID, targetID, operation))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending sync item: %w", err)
	}
	return item, nil
}

// ClaimPending atomically moves up to limit pending items to syncing and
// returns them in scheduled_at order. Each row is claimed with a
// conditional update so two concurrent processors never share an item.
func (db *DB) ClaimPending(ctx context.Context, limit int) ([]models.SyncQueueItem, error) {
	query := `SELECT id FROM sync_queue WHERE status = 'pending' AND scheduled_at <= ?
              ORDER BY scheduled_at ASC LIMIT ?`
	rows, err := db.db.QueryContext(ctx, query, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending sync items: %w", err)
	}

	var candidates []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan pending id: %w", err)
		}
		candidates = append(candidates, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var claimed []models.SyncQueueItem
	for _, id := range candidates {
		res, err := db.db.ExecContext(ctx,
			`UPDATE sync_queue SET status = 'syncing' WHERE id = ? AND status = 'pending'`, id)
		if err != nil {
			return claimed, fmt.Errorf("failed to claim sync item %d: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return claimed, err
		}
		if affected == 0 {
			// Another instance got there first.
			continue
		}

		item, err := db.GetQueueItem(ctx, id)
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, *item)
	}
	return claimed, nil
}

// MarkSucceeded finalizes an item after a successful push.
func (db *DB) MarkSucceeded(ctx context.Context, itemID int64) error {
	now := time.Now()
	query := `UPDATE sync_queue SET status = 'succeeded', error_message = NULL, error_details = NULL, processed_at = ? WHERE id = ?`
	if _, err := db.db.ExecContext(ctx, query, now, itemID); err != nil {
		return fmt.Errorf("failed to mark sync item succeeded: %w", err)
	}
	return nil
}

// MarkFailed finalizes an item that will not be attempted again.
func (db *DB) MarkFailed(ctx context.Context, itemID int64, retryCount int, errMsg, errDetails string) error {
	now := time.Now()
	query := `UPDATE sync_queue SET status = 'failed', retry_count = ?, error_message = ?, error_details = ?, processed_at = ? WHERE id = ?`
	if _, err := db.db.ExecContext(ctx, query, retryCount, errMsg, errDetails, now, itemID); err != nil {
		return fmt.Errorf("failed to mark sync item failed: %w", err)
	}
	return nil
}

// Requeue returns an item to pending for another poll pass.
func (db *DB) Requeue(ctx context.Context, itemID int64, retryCount int) error {
	query := `UPDATE sync_queue SET status = 'pending', retry_count = ? WHERE id = ?`
	if _, err := db.db.ExecContext(ctx, query, retryCount, itemID); err != nil {
		return fmt.Errorf("failed to requeue sync item: %w", err)
	}
	return nil
}

func (db *DB) GetQueueItem(ctx context.Context, id int64) (*models.SyncQueueItem, error) {
	query := `SELECT ` + syncQueueColumns + ` FROM sync_queue WHERE id = ?`
	item, err := db.scanQueueItem(db.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get sync item %d: %w", id, err)
	}
	return item, nil
}

// GetQueueItems lists items by status, newest first. An empty status
// returns items of every status.
func (db *DB) GetQueueItems(ctx context.Context, status string, limit int) ([]models.SyncQueueItem, error) {
	query := `SELECT ` + syncQueueColumns + ` FROM sync_queue WHERE (? = '' OR status = ?) ORDER BY created_at DESC LIMIT ?`
	rows, err := db.db.QueryContext(ctx, query, status, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync items: %w", err)
	}
	defer rows.Close()

	var items []models.SyncQueueItem
	for rows.Next() {
		item, err := db.scanQueueItemRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (db *DB) GetQueueStats(ctx context.Context) (*models.QueueStats, error) {
	query := `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`
	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}
	defer rows.Close()

	stats := &models.QueueStats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		switch status {
		case models.QueuePending:
			stats.Pending = count
		case models.QueueSyncing:
			stats.Syncing = count
		case models.QueueSucceeded:
			stats.Succeeded = count
		case models.QueueFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (db *DB) scanQueueItem(row rowScanner) (*models.SyncQueueItem, error) {
	var item models.SyncQueueItem
	err := row.Scan(
		&item.ID, &item.UID, &item.SubjectID, &item.TargetID, &item.Operation, &item.Status,
		&item.RetryCount, &item.MaxRetries, &item.ErrorMessage, &item.ErrorDetails,
		&item.ScheduledAt, &item.ProcessedAt, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (db *DB) scanQueueItemRows(rows *sql.Rows) (*models.SyncQueueItem, error) {
	item, err := db.scanQueueItem(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync item: %w", err)
	}
	return item, nil
}
