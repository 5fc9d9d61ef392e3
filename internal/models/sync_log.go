package models

import "time"

// SyncLogEntry is an immutable audit record written once per processing
// attempt. One queue item may produce several entries across retries.
type SyncLogEntry struct {
	ID           int64     `json:"id"`
	QueueItemID  int64     `json:"queue_item_id"`
	SubjectID    int64     `json:"subject_id"`
	TargetID     int64     `json:"target_id"`
	Operation    string    `json:"operation"`
	Status       string    `json:"status"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}
