package domain

import (
	"context"
	"time"

	"shelfsync/internal/models"
)

// QueueStore is the durable sync queue plus its audit log.
type QueueStore interface {
	Enqueue(ctx context.Context, subjectID, targetID int64, operation string) (*models.SyncQueueItem, bool, error)
	ClaimPending(ctx context.Context, limit int) ([]models.SyncQueueItem, error)
	MarkSucceeded(ctx context.Context, itemID int64) error
	MarkFailed(ctx context.Context, itemID int64, retryCount int, errMsg, errDetails string) error
	Requeue(ctx context.Context, itemID int64, retryCount int) error
	GetQueueItem(ctx context.Context, id int64) (*models.SyncQueueItem, error)
	GetQueueItems(ctx context.Context, status string, limit int) ([]models.SyncQueueItem, error)
	GetQueueStats(ctx context.Context) (*models.QueueStats, error)
	AppendSyncLog(ctx context.Context, entry *models.SyncLogEntry) error
	GetSyncLog(ctx context.Context, queueItemID int64) ([]models.SyncLogEntry, error)
	GetRecentSyncLog(ctx context.Context, limit int) ([]models.SyncLogEntry, error)
}

// ScheduleStore persists price adjustment schedules.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, s *models.PriceAdjustmentSchedule) error
	UpdateSchedule(ctx context.Context, s *models.PriceAdjustmentSchedule) error
	DeleteSchedule(ctx context.Context, id int64) error
	GetSchedule(ctx context.Context, id int64) (*models.PriceAdjustmentSchedule, error)
	ListSchedules(ctx context.Context, targetID int64) ([]models.PriceAdjustmentSchedule, error)
	GetDueSchedules(ctx context.Context, now time.Time, limit int) ([]models.PriceAdjustmentSchedule, error)
	UpdateScheduleTrigger(ctx context.Context, id int64, nextTriggerAt *time.Time, lastTriggeredAt time.Time) error
	DeactivateSchedule(ctx context.Context, id int64) error
}

// EntityStore resolves the subject and target of a queue item.
type EntityStore interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	GetStore(ctx context.Context, id int64) (*models.Store, error)
}

// CatalogTarget is the external ESL system that must reflect product
// and price state. The concrete implementation is replaceable.
type CatalogTarget interface {
	Apply(ctx context.Context, operation string, product *models.Product, store *models.Store) error
	BulkSetPrice(ctx context.Context, store *models.Store, prices []models.PriceUpdate) error
}

// EventPublisher fans sync lifecycle events out to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// LimiterRepository answers whether a (target, caller) pair may make
// another call inside the current window.
type LimiterRepository interface {
	Allow(ctx context.Context, target, caller string, limit int, window time.Duration) (bool, error)
}
