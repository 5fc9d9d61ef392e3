package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shelfsync/internal/models"
	"shelfsync/internal/report"
)

type enqueueRequest struct {
	SubjectID int64  `json:"subject_id"`
	TargetID  int64  `json:"target_id"`
	Operation string `json:"operation"`
}

type enqueueResponse struct {
	Item    *models.SyncQueueItem `json:"item"`
	Created bool                  `json:"created"`
}

func (s *HTTPServer) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SubjectID <= 0 || req.TargetID <= 0 {
		writeError(w, http.StatusBadRequest, "subject_id and target_id are required")
		return
	}
	if !models.ValidOperation(req.Operation) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown operation %q", req.Operation))
		return
	}

	item, created, err := s.db.Enqueue(r.Context(), req.SubjectID, req.TargetID, req.Operation)
	if err != nil {
		s.logger.Error().Err(err).Msg("enqueue failed")
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, enqueueResponse{Item: item, Created: created})
}

func (s *HTTPServer) handleQueueList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status != "" && status != models.QueuePending && status != models.QueueSyncing &&
		status != models.QueueSucceeded && status != models.QueueFailed {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", status))
		return
	}

	limit := queryInt(r, "limit", 100)
	items, err := s.db.GetQueueItems(r.Context(), status, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("queue list failed")
		writeError(w, http.StatusInternalServerError, "queue list failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items, "count": len(items)})
}

func (s *HTTPServer) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := s.db.GetQueueStats(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("queue stats failed")
		writeError(w, http.StatusInternalServerError, "queue stats failed")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *HTTPServer) handleSyncLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var (
		entries []models.SyncLogEntry
		err     error
	)

	if raw := r.URL.Query().Get("queue_item_id"); raw != "" {
		id, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid queue_item_id")
			return
		}
		entries, err = s.db.GetSyncLog(r.Context(), id)
	} else {
		entries, err = s.db.GetRecentSyncLog(r.Context(), queryInt(r, "limit", 200))
	}

	if err != nil {
		s.logger.Error().Err(err).Msg("sync log lookup failed")
		writeError(w, http.StatusInternalServerError, "sync log lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "count": len(entries)})
}

// handleRequeue moves a failed item back to pending with a fresh retry budget.
func (s *HTTPServer) handleRequeue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, err := pathID(r.URL.Path, "/api/v1/sync/requeue/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := s.db.GetQueueItem(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	if item.Status != models.QueueFailed {
		writeError(w, http.StatusConflict, fmt.Sprintf("item is %s, only failed items can be requeued", item.Status))
		return
	}

	if err := s.db.Requeue(r.Context(), id, 0); err != nil {
		s.logger.Error().Err(err).Int64("item_id", id).Msg("requeue failed")
		writeError(w, http.StatusInternalServerError, "requeue failed")
		return
	}

	item, err = s.db.GetQueueItem(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "requeue failed")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleSyncReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries, err := s.db.GetRecentSyncLog(r.Context(), queryInt(r, "limit", 1000))
	if err != nil {
		s.logger.Error().Err(err).Msg("sync report failed")
		writeError(w, http.StatusInternalServerError, "sync report failed")
		return
	}

	failed, err := s.db.GetQueueItems(r.Context(), models.QueueFailed, 500)
	if err != nil {
		s.logger.Error().Err(err).Msg("sync report failed")
		writeError(w, http.StatusInternalServerError, "sync report failed")
		return
	}

	filename := fmt.Sprintf("sync_report_%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := report.WriteSyncReport(w, entries, failed); err != nil {
		s.logger.Error().Err(err).Msg("writing sync report failed")
	}
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func pathID(path, prefix string) (int64, error) {
	raw := strings.TrimPrefix(path, prefix)
	raw = strings.TrimSuffix(raw, "/")
	if raw == "" || strings.Contains(raw, "/") {
		return 0, fmt.Errorf("invalid id in path")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id in path")
	}
	return id, nil
}
