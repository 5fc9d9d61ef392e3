package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"shelfsync/internal/models"

	"github.com/google/uuid"
)

const scheduleColumns = `id, uid, target_id, COALESCE(name, ''), products, start_date, end_date, repeat_type,
        trigger_days, time_slots, is_active, next_trigger_at, last_triggered_at, created_at, updated_at`

// CreateSchedule persists a new price adjustment schedule. The caller is
// expected to have computed NextTriggerAt already.
func (db *DB) CreateSchedule(ctx context.Context, s *models.PriceAdjustmentSchedule) error {
	products, triggerDays, timeSlots, err := encodeScheduleFields(s)
	if err != nil {
		return err
	}

	if s.UID == "" {
		s.UID = uuid.NewString()
	}
	now := time.Now()

	query := `INSERT INTO price_adjustment_schedules
              (uid, target_id, name, products, start_date, end_date, repeat_type, trigger_days, time_slots,
               is_active, next_trigger_at, last_triggered_at, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.db.ExecContext(ctx, query,
		s.UID, s.TargetID, s.Name, products, s.StartDate, s.EndDate, s.RepeatType, triggerDays, timeSlots,
		s.IsActive, s.NextTriggerAt, s.LastTriggeredAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	s.ID = id
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

// UpdateSchedule replaces the schedule definition and trigger state.
func (db *DB) UpdateSchedule(ctx context.Context, s *models.PriceAdjustmentSchedule) error {
	products, triggerDays, timeSlots, err := encodeScheduleFields(s)
	if err != nil {
		return err
	}

	now := time.Now()
	query := `UPDATE price_adjustment_schedules SET
                  target_id = ?, name = ?, products = ?, start_date = ?, end_date = ?, repeat_type = ?,
                  trigger_days = ?, time_slots = ?, is_active = ?, next_trigger_at = ?, last_triggered_at = ?, updated_at = ?
              WHERE id = ?`
	result, err := db.db.ExecContext(ctx, query,
		s.TargetID, s.Name, products, s.StartDate, s.EndDate, s.RepeatType,
		triggerDays, timeSlots, s.IsActive, s.NextTriggerAt, s.LastTriggeredAt, now, s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	s.UpdatedAt = now
	return nil
}

func (db *DB) DeleteSchedule(ctx context.Context, id int64) error {
	result, err := db.db.ExecContext(ctx, `DELETE FROM price_adjustment_schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (db *DB) GetSchedule(ctx context.Context, id int64) (*models.PriceAdjustmentSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM price_adjustment_schedules WHERE id = ?`
	s, err := scanSchedule(db.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule %d: %w", id, err)
	}
	return s, nil
}

// ListSchedules returns schedules, optionally restricted to one target.
func (db *DB) ListSchedules(ctx context.Context, targetID int64) ([]models.PriceAdjustmentSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM price_adjustment_schedules
              WHERE (? = 0 OR target_id = ?) ORDER BY created_at DESC`
	rows, err := db.db.QueryContext(ctx, query, targetID, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

// GetDueSchedules returns active schedules whose next trigger has passed,
// soonest first.
func (db *DB) GetDueSchedules(ctx context.Context, now time.Time, limit int) ([]models.PriceAdjustmentSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM price_adjustment_schedules
              WHERE is_active = 1 AND next_trigger_at IS NOT NULL AND next_trigger_at <= ?
              ORDER BY next_trigger_at ASC LIMIT ?`
	rows, err := db.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

// UpdateScheduleTrigger advances the schedule clock after a fired trigger.
func (db *DB) UpdateScheduleTrigger(ctx context.Context, id int64, nextTriggerAt *time.Time, lastTriggeredAt time.Time) error {
	query := `UPDATE price_adjustment_schedules SET next_trigger_at = ?, last_triggered_at = ?, updated_at = ? WHERE id = ?`
	if _, err := db.db.ExecContext(ctx, query, nextTriggerAt, lastTriggeredAt, time.Now(), id); err != nil {
		return fmt.Errorf("failed to update schedule trigger: %w", err)
	}
	return nil
}

// TouchLastTriggered records the final fire of a schedule without touching
// next_trigger_at. Deactivation clears the trigger; the audit trail stays.
func (db *DB) TouchLastTriggered(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE price_adjustment_schedules SET last_triggered_at = ?, updated_at = ? WHERE id = ?`
	if _, err := db.db.ExecContext(ctx, query, at, time.Now(), id); err != nil {
		return fmt.Errorf("failed to touch last triggered: %w", err)
	}
	return nil
}

// DeactivateSchedule marks a schedule terminal: inactive with no next trigger.
func (db *DB) DeactivateSchedule(ctx context.Context, id int64) error {
	query := `UPDATE price_adjustment_schedules SET is_active = 0, next_trigger_at = NULL, updated_at = ? WHERE id = ?`
	if _, err := db.db.ExecContext(ctx, query, time.Now(), id); err != nil {
		return fmt.Errorf("failed to deactivate schedule: %w", err)
	}
	return nil
}

func encodeScheduleFields(s *models.PriceAdjustmentSchedule) (string, string, string, error) {
	products, err := json.Marshal(s.Products)
	if err != nil {
		return "", "", "", fmt.Errorf("encode products: %w", err)
	}
	triggerDays, err := json.Marshal(s.TriggerDays)
	if err != nil {
		return "", "", "", fmt.Errorf("encode trigger days: %w", err)
	}
	timeSlots, err := json.Marshal(s.TimeSlots)
	if err != nil {
		return "", "", "", fmt.Errorf("encode time slots: %w", err)
	}
	return string(products), string(triggerDays), string(timeSlots), nil
}

func scanSchedule(row rowScanner) (*models.PriceAdjustmentSchedule, error) {
	var s models.PriceAdjustmentSchedule
	var products, triggerDays, timeSlots string
	err := row.Scan(
		&s.ID, &s.UID, &s.TargetID, &s.Name, &products, &s.StartDate, &s.EndDate, &s.RepeatType,
		&triggerDays, &timeSlots, &s.IsActive, &s.NextTriggerAt, &s.LastTriggeredAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(products), &s.Products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	if triggerDays != "" {
		if err := json.Unmarshal([]byte(triggerDays), &s.TriggerDays); err != nil {
			return nil, fmt.Errorf("decode trigger days: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(timeSlots), &s.TimeSlots); err != nil {
		return nil, fmt.Errorf("decode time slots: %w", err)
	}
	return &s, nil
}

func collectSchedules(rows *sql.Rows) ([]models.PriceAdjustmentSchedule, error) {
	var schedules []models.PriceAdjustmentSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}
