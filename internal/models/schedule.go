package models

import "time"

// ScheduleProduct is one product affected by a price adjustment
// schedule. OriginalPrice is what gets restored when the promotion
// window closes; it may be absent for products enrolled without a
// recorded base price.
type ScheduleProduct struct {
	Code             string   `json:"code"`
	PromotionalPrice float64  `json:"promotional_price"`
	OriginalPrice    *float64 `json:"original_price,omitempty"`
}

// TimeSlot is a promotional window within a day, store-local, "HH:MM".
type TimeSlot struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// PriceAdjustmentSchedule is a recurring or one-shot price-change rule.
// Once IsActive goes false the schedule is terminal: NextTriggerAt is
// null and it is never re-evaluated without an explicit update.
type PriceAdjustmentSchedule struct {
	ID              int64             `json:"id"`
	UID             string            `json:"uid"`
	TargetID        int64             `json:"target_id"`
	Name            string            `json:"name"`
	Products        []ScheduleProduct `json:"products"`
	StartDate       time.Time         `json:"start_date"`
	EndDate         *time.Time        `json:"end_date,omitempty"`
	RepeatType      string            `json:"repeat_type"`
	TriggerDays     []int             `json:"trigger_days,omitempty"`
	TimeSlots       []TimeSlot        `json:"time_slots"`
	IsActive        bool              `json:"is_active"`
	NextTriggerAt   *time.Time        `json:"next_trigger_at,omitempty"`
	LastTriggeredAt *time.Time        `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
