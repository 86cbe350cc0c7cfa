// Package ingest exposes the event ingestion API: events are appended to the
// event log, and sync-flagged events are additionally executed inline with the
// engine output returned in the response.
package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eventengine/internal/logger"
	"eventengine/internal/runner"
	"eventengine/pkg/models"
)

// EventAppender is the write side of the event log.
type EventAppender interface {
	Append(ctx context.Context, event *models.RawEvent) error
}

// ResultSink receives inline execution results for persistence. The pipeline
// implements it with its sequential persist queue.
type ResultSink interface {
	EnqueuePersist(results []*models.EventResult)
}

// Server is the ingestion HTTP server.
type Server struct {
	log    EventAppender
	runner *runner.Runner
	sink   ResultSink
	router chi.Router
}

// NewServer wires the ingest routes.
func NewServer(log EventAppender, run *runner.Runner, sink ResultSink) *Server {
	s := &Server{log: log, runner: run, sink: sink}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/events", s.handleEvent)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

type eventRequest struct {
	Timestamp *time.Time             `json:"timestamp,omitempty"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Options   models.EventOptions    `json:"options,omitempty"`
}

type eventResponse struct {
	ID     string              `json:"id"`
	Result *models.EventResult `json:"result,omitempty"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "event type is required")
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate event id")
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}
	if req.Data == nil {
		req.Data = map[string]interface{}{}
	}

	event := &models.RawEvent{
		ID:        id.String(),
		Type:      req.Type,
		Timestamp: ts,
		Data:      req.Data,
		Options:   req.Options,
	}

	if err := s.log.Append(r.Context(), event); err != nil {
		logger.Errorf("Failed to append event: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store event")
		return
	}

	if !event.Options.Sync {
		writeJSON(w, http.StatusAccepted, eventResponse{ID: event.ID})
		return
	}

	// Sync path: execute inline, persist through the sequential queue, and
	// return the engine output. The batch pipeline skips this event.
	res, err := s.runner.Run(r.Context(), event)
	if err != nil {
		logger.Errorf("Inline execution failed: %v", err)
		writeError(w, http.StatusInternalServerError, "event execution failed")
		return
	}
	s.sink.EnqueuePersist([]*models.EventResult{res})
	writeJSON(w, http.StatusOK, eventResponse{ID: event.ID, Result: res})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
