// Package server is the HTTP front door: a liveness route and the
// /process-emails trigger that kicks off a fetch without blocking.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi"
	"github.com/rs/cors"
)

type TriggerPublisher interface {
	PublishFetch(since time.Duration, source string) (string, error)
}

type Server struct {
	logger   *log.Logger
	triggers TriggerPublisher
	lookback time.Duration
}

func New(logger *log.Logger, triggers TriggerPublisher, lookback time.Duration) *Server {
	return &Server{
		logger:   logger,
		triggers: triggers,
		lookback: lookback,
	}
}

// Handler builds the route tree. Kept separate from listening so tests can
// drive it with httptest.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Get("/", s.handleLiveness)
	router.Get("/process-emails", s.handleProcessEmails)
	return cors.Default().Handler(router)
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("HTTP server listening", "addr", addr)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return httpServer.ListenAndServe()
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "mailroom is running"})
}

// handleProcessEmails only enqueues the run; the triage worker picks it up
// on its own goroutine and reports results to the operator chat.
func (s *Server) handleProcessEmails(w http.ResponseWriter, r *http.Request) {
	runID, err := s.triggers.PublishFetch(s.lookback, "http")
	if err != nil {
		s.logger.Error("Failed to publish fetch trigger", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to start processing"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "processing started",
		"run_id":  runID,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
