package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"shelfsync/internal/config"
	"shelfsync/internal/database"
	"shelfsync/internal/scheduler"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the management API: enqueue, queue inspection,
// schedule CRUD, manual triggers and xlsx reports.
type HTTPServer struct {
	cfg       config.APIConfig
	db        *database.DB
	schedules *scheduler.Processor
	server    *http.Server
	auth      *HTTPAuth
	logger    zerolog.Logger
}

func NewHTTPServer(cfg *config.APIConfig, db *database.DB, schedules *scheduler.Processor, logger *zerolog.Logger) *HTTPServer {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "http_api").Logger()
	}

	mux := http.NewServeMux()
	srv := &HTTPServer{cfg: *cfg, db: db, schedules: schedules, logger: log}
	srv.auth = NewHTTPAuth(*cfg)

	mux.HandleFunc("/api/v1/sync/enqueue", srv.handleEnqueue)
	mux.HandleFunc("/api/v1/sync/queue", srv.handleQueueList)
	mux.HandleFunc("/api/v1/sync/queue/stats", srv.handleQueueStats)
	mux.HandleFunc("/api/v1/sync/log", srv.handleSyncLog)
	mux.HandleFunc("/api/v1/sync/requeue/", srv.handleRequeue)
	mux.HandleFunc("/api/v1/schedules", srv.handleSchedules)
	mux.HandleFunc("/api/v1/schedules/", srv.handleScheduleByID)
	mux.HandleFunc("/api/v1/reports/sync", srv.handleSyncReport)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
