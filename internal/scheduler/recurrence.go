package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"shelfsync/internal/models"
)

// BoundaryTolerance is how far behind now a slot boundary may lie and
// still count as the current trigger. The processor polls about once a
// minute and must not skip a boundary that fell between polls.
const BoundaryTolerance = 60 * time.Second

// EventKind says whether a trigger starts or ends a promotion window.
type EventKind string

const (
	EventStart EventKind = "start"
	EventEnd   EventKind = "end"
)

// Trigger is the next wall-clock moment a schedule must fire.
type Trigger struct {
	At   time.Time
	Kind EventKind
}

// NextTrigger computes the next slot boundary for a schedule, evaluated
// at now in the store's timezone. It returns false when the schedule is
// exhausted. Boundaries up to BoundaryTolerance in the past are treated
// as the current trigger rather than skipped.
func NextTrigger(s *models.PriceAdjustmentSchedule, now time.Time, loc *time.Location) (Trigger, bool) {
	if !s.IsActive || len(s.TimeSlots) == 0 {
		return Trigger{}, false
	}

	now = now.In(loc)
	start := s.StartDate.In(loc)
	cutoff := now.Add(-BoundaryTolerance)

	end, hasEnd := effectiveEnd(s, start, loc)
	if hasEnd && now.After(end) {
		return Trigger{}, false
	}

	if now.Before(start) {
		first, err := slotMoment(dateOf(start), s.TimeSlots[0].StartTime, loc)
		if err != nil {
			return Trigger{}, false
		}
		return Trigger{At: first, Kind: EventStart}, true
	}

	trig, ok := nextByRepeat(s, now, cutoff, start, loc)
	if !ok {
		return Trigger{}, false
	}
	if hasEnd && trig.At.After(end.Add(BoundaryTolerance)) {
		return Trigger{}, false
	}
	return trig, true
}

func nextByRepeat(s *models.PriceAdjustmentSchedule, now, cutoff, start time.Time, loc *time.Location) (Trigger, bool) {
	today := dateOf(now)

	switch s.RepeatType {
	case models.RepeatNone:
		return nextBoundaryOn(s.TimeSlots, dateOf(start), cutoff, loc)

	case models.RepeatDaily:
		if trig, ok := nextBoundaryOn(s.TimeSlots, today, cutoff, loc); ok {
			return trig, true
		}
		return firstSlotStart(s.TimeSlots, today.AddDate(0, 0, 1), loc)

	case models.RepeatWeekly:
		if len(s.TriggerDays) == 0 {
			return Trigger{}, false
		}
		for offset := 0; offset < 8; offset++ {
			day := today.AddDate(0, 0, offset)
			if !containsDay(s.TriggerDays, isoWeekday(day)) {
				continue
			}
			if offset == 0 {
				if trig, ok := nextBoundaryOn(s.TimeSlots, day, cutoff, loc); ok {
					return trig, true
				}
				continue
			}
			return firstSlotStart(s.TimeSlots, day, loc)
		}
		return Trigger{}, false

	case models.RepeatMonthly:
		dom := start.Day()
		for offset := 0; offset < 13; offset++ {
			day := time.Date(now.Year(), now.Month()+time.Month(offset), dom, 0, 0, 0, 0, loc)
			if day.Day() != dom {
				// This month has no such day-of-month.
				continue
			}
			if day.Before(today) {
				continue
			}
			if day.Equal(today) {
				if trig, ok := nextBoundaryOn(s.TimeSlots, day, cutoff, loc); ok {
					return trig, true
				}
				continue
			}
			return firstSlotStart(s.TimeSlots, day, loc)
		}
		return Trigger{}, false
	}

	return Trigger{}, false
}

// effectiveEnd resolves the schedule end, honoring the convention that a
// repeating schedule whose endDate equals its startDate (within 60s)
// repeats indefinitely. Callers routinely submit endDate = startDate as
// a placeholder.
func effectiveEnd(s *models.PriceAdjustmentSchedule, start time.Time, loc *time.Location) (time.Time, bool) {
	if s.EndDate == nil {
		return time.Time{}, false
	}
	end := s.EndDate.In(loc)
	if s.RepeatType != models.RepeatNone {
		diff := end.Sub(start)
		if diff < 0 {
			diff = -diff
		}
		if diff <= time.Minute {
			return time.Time{}, false
		}
	}
	return end, true
}

// nextBoundaryOn walks the slot boundaries of one day in order and
// returns the first one after cutoff.
func nextBoundaryOn(slots []models.TimeSlot, day time.Time, cutoff time.Time, loc *time.Location) (Trigger, bool) {
	for _, slot := range slots {
		startAt, err := slotMoment(day, slot.StartTime, loc)
		if err != nil {
			return Trigger{}, false
		}
		if startAt.After(cutoff) {
			return Trigger{At: startAt, Kind: EventStart}, true
		}

		endAt, err := slotMoment(day, slot.EndTime, loc)
		if err != nil {
			return Trigger{}, false
		}
		if endAt.After(cutoff) {
			return Trigger{At: endAt, Kind: EventEnd}, true
		}
	}
	return Trigger{}, false
}

func firstSlotStart(slots []models.TimeSlot, day time.Time, loc *time.Location) (Trigger, bool) {
	at, err := slotMoment(day, slots[0].StartTime, loc)
	if err != nil {
		return Trigger{}, false
	}
	return Trigger{At: at, Kind: EventStart}, true
}

func slotMoment(day time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	hour, minute, err := parseHHMM(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

func parseHHMM(v string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(v), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", v)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", v)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", v)
	}
	return hour, minute, nil
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// isoWeekday maps time.Weekday to ISO numbering: Monday=1 .. Sunday=7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

// ValidateSchedule checks a schedule definition before it is persisted.
func ValidateSchedule(s *models.PriceAdjustmentSchedule) error {
	if s.TargetID == 0 {
		return fmt.Errorf("target_id is required")
	}
	if len(s.Products) == 0 {
		return fmt.Errorf("at least one product is required")
	}
	if !models.ValidRepeatType(s.RepeatType) {
		return fmt.Errorf("unknown repeat type: %s", s.RepeatType)
	}
	if len(s.TimeSlots) == 0 {
		return fmt.Errorf("at least one time slot is required")
	}
	for _, slot := range s.TimeSlots {
		sh, sm, err := parseHHMM(slot.StartTime)
		if err != nil {
			return err
		}
		eh, em, err := parseHHMM(slot.EndTime)
		if err != nil {
			return err
		}
		if eh*60+em <= sh*60+sm {
			return fmt.Errorf("time slot %s-%s must end after it starts", slot.StartTime, slot.EndTime)
		}
	}
	if s.RepeatType == models.RepeatWeekly {
		if len(s.TriggerDays) == 0 {
			return fmt.Errorf("weekly schedules need trigger_days")
		}
		for _, d := range s.TriggerDays {
			if d < 1 || d > 7 {
				return fmt.Errorf("trigger day %d outside 1..7", d)
			}
		}
	}
	return nil
}
