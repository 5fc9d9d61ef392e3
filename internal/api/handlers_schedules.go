package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shelfsync/internal/models"
	"shelfsync/internal/scheduler"

	"github.com/google/uuid"
)

func (s *HTTPServer) handleSchedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listSchedules(w, r)
	case http.MethodPost:
		s.createSchedule(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleScheduleByID serves /api/v1/schedules/{id} and the manual
// trigger endpoint /api/v1/schedules/{id}/trigger.
func (s *HTTPServer) handleScheduleByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/schedules/"), "/")
	parts := strings.Split(rest, "/")

	id, err := pathID("/api/v1/schedules/"+parts[0], "/api/v1/schedules/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(parts) == 2 && parts[1] == "trigger" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.triggerSchedule(w, r, id)
		return
	}
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getSchedule(w, r, id)
	case http.MethodPut:
		s.updateSchedule(w, r, id)
	case http.MethodDelete:
		s.deleteSchedule(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) listSchedules(w http.ResponseWriter, r *http.Request) {
	targetID := int64(queryInt(r, "target_id", 0))
	schedules, err := s.db.ListSchedules(r.Context(), targetID)
	if err != nil {
		s.logger.Error().Err(err).Msg("listing schedules failed")
		writeError(w, http.StatusInternalServerError, "listing schedules failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"schedules": schedules, "count": len(schedules)})
}

func (s *HTTPServer) createSchedule(w http.ResponseWriter, r *http.Request) {
	var sched models.PriceAdjustmentSchedule
	if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := scheduler.ValidateSchedule(&sched); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc, err := s.storeLocation(r, sched.TargetID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if sched.UID == "" {
		sched.UID = uuid.NewString()
	}
	sched.IsActive = true
	sched.LastTriggeredAt = nil

	if trig, ok := scheduler.NextTrigger(&sched, time.Now(), loc); ok {
		at := trig.At
		sched.NextTriggerAt = &at
	} else {
		writeError(w, http.StatusBadRequest, "schedule has no upcoming trigger")
		return
	}

	if err := s.db.CreateSchedule(r.Context(), &sched); err != nil {
		s.logger.Error().Err(err).Msg("creating schedule failed")
		writeError(w, http.StatusInternalServerError, "creating schedule failed")
		return
	}

	writeJSON(w, http.StatusCreated, &sched)
}

func (s *HTTPServer) getSchedule(w http.ResponseWriter, r *http.Request, id int64) {
	sched, err := s.db.GetSchedule(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		s.logger.Error().Err(err).Int64("schedule_id", id).Msg("loading schedule failed")
		writeError(w, http.StatusInternalServerError, "loading schedule failed")
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *HTTPServer) updateSchedule(w http.ResponseWriter, r *http.Request, id int64) {
	existing, err := s.db.GetSchedule(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "loading schedule failed")
		return
	}

	var sched models.PriceAdjustmentSchedule
	if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sched.ID = id
	sched.UID = existing.UID
	sched.CreatedAt = existing.CreatedAt

	if err := scheduler.ValidateSchedule(&sched); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc, err := s.storeLocation(r, sched.TargetID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Editing a schedule brings it back to life with a freshly
	// computed trigger; it only stays inactive when exhausted.
	sched.IsActive = true
	if trig, ok := scheduler.NextTrigger(&sched, time.Now(), loc); ok {
		at := trig.At
		sched.NextTriggerAt = &at
	} else {
		sched.NextTriggerAt = nil
		sched.IsActive = false
	}

	if err := s.db.UpdateSchedule(r.Context(), &sched); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		s.logger.Error().Err(err).Int64("schedule_id", id).Msg("updating schedule failed")
		writeError(w, http.StatusInternalServerError, "updating schedule failed")
		return
	}

	writeJSON(w, http.StatusOK, &sched)
}

func (s *HTTPServer) deleteSchedule(w http.ResponseWriter, r *http.Request, id int64) {
	if err := s.db.DeleteSchedule(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		s.logger.Error().Err(err).Int64("schedule_id", id).Msg("deleting schedule failed")
		writeError(w, http.StatusInternalServerError, "deleting schedule failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// triggerSchedule runs one evaluation pass for a single schedule,
// outside the polling loop.
func (s *HTTPServer) triggerSchedule(w http.ResponseWriter, r *http.Request, id int64) {
	sched, err := s.db.GetSchedule(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "loading schedule failed")
		return
	}

	if s.schedules == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler is not running")
		return
	}

	if err := s.schedules.ProcessOne(r.Context(), sched); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	updated, err := s.db.GetSchedule(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading schedule failed")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) storeLocation(r *http.Request, targetID int64) (*time.Location, error) {
	store, err := s.db.GetStore(r.Context(), targetID)
	if err != nil {
		return nil, fmt.Errorf("unknown target store %d", targetID)
	}
	loc, err := time.LoadLocation(store.Timezone)
	if err != nil {
		return nil, fmt.Errorf("store %d has invalid timezone %q", targetID, store.Timezone)
	}
	return loc, nil
}
