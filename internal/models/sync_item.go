package models

import "time"

// SyncQueueItem is one desired external-state change waiting to be
// pushed to a catalog target. Items are never deleted; succeeded and
// failed rows remain for audit.
type SyncQueueItem struct {
	ID           int64      `json:"id"`
	UID          string     `json:"uid"`
	SubjectID    int64      `json:"subject_id"`
	TargetID     int64      `json:"target_id"`
	Operation    string     `json:"operation"`
	Status       string     `json:"status"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	ErrorDetails *string    `json:"error_details,omitempty"`
	ScheduledAt  time.Time  `json:"scheduled_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// QueueStats is an aggregate snapshot of the sync queue by status.
type QueueStats struct {
	Pending   int `json:"pending"`
	Syncing   int `json:"syncing"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
