package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventSyncItemFailed      = "sync_item_failed"
	EventScheduleTriggered   = "schedule_triggered"
	EventScheduleDeactivated = "schedule_deactivated"
	EventPriceRestoreSkipped = "price_restore_skipped"
)

// SyncFailurePayload describes a terminally failed queue item.
type SyncFailurePayload struct {
	QueueItemID  int64  `json:"queue_item_id"`
	SubjectID    int64  `json:"subject_id"`
	TargetID     int64  `json:"target_id"`
	Operation    string `json:"operation"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	RetryCount   int    `json:"retry_count"`
}

// SchedulePayload describes a schedule lifecycle event.
type SchedulePayload struct {
	ScheduleID   int64  `json:"schedule_id"`
	TargetID     int64  `json:"target_id"`
	Event        string `json:"event,omitempty"`
	ProductCode  string `json:"product_code,omitempty"`
	ProductCount int    `json:"product_count,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
