package models

// Queue operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Queue item statuses.
const (
	QueuePending   = "pending"
	QueueSyncing   = "syncing"
	QueueSucceeded = "succeeded"
	QueueFailed    = "failed"
)

// Sync log statuses.
const (
	LogSucceeded = "succeeded"
	LogFailed    = "failed"
)

// Sync log error codes.
const (
	ErrCodeTransient = "TRANSIENT"
	ErrCodePermanent = "PERMANENT"
)

// Schedule repeat types.
const (
	RepeatNone    = "none"
	RepeatDaily   = "daily"
	RepeatWeekly  = "weekly"
	RepeatMonthly = "monthly"
)

const (
	DefaultMaxRetries        = 3
	DefaultQueueBatchSize    = 20
	DefaultQueuePollSeconds  = 5
	DefaultSchedulePollSecs  = 60
	DefaultCatalogTimeoutSec = 30
)

// ValidOperation reports whether op is a known queue operation.
func ValidOperation(op string) bool {
	return op == OpCreate || op == OpUpdate || op == OpDelete
}

// ValidRepeatType reports whether rt is a known schedule repeat type.
func ValidRepeatType(rt string) bool {
	switch rt {
	case RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly:
		return true
	}
	return false
}
