// Package api is the HTTP front door: job control, result access, and a
// server-sent-events stream of crawl progress.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/bidwatch/g2b-crawler/internal/events"
	"github.com/bidwatch/g2b-crawler/internal/g2b"
	"github.com/bidwatch/g2b-crawler/internal/job"
	"github.com/bidwatch/g2b-crawler/internal/metrics"
)

// JobController is the slice of the coordinator the API needs.
type JobController interface {
	Start(keywords []string, opts job.Options) error
	Stop() (job.Snapshot, error)
	Status() job.Snapshot
	Results() []g2b.BidItem
}

// Server routes HTTP traffic to the job controller and event bus.
type Server struct {
	controller JobController
	bus        *events.Bus
	logger     *zap.Logger
	router     chi.Router
}

// NewServer builds the router with its middleware stack.
func NewServer(controller JobController, bus *events.Bus, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{controller: controller, bus: bus, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Get("/status", s.handleStatus)
		r.Get("/results", s.handleResults)
		r.Get("/events", s.handleEvents)
	})

	s.router = r
	return s
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startRequest struct {
	Keywords           []string `json:"keywords"`
	MaxItemsPerKeyword int      `json:"max_items_per_keyword"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.controller.Start(req.Keywords, job.Options{MaxItemsPerKeyword: req.MaxItemsPerKeyword})
	switch {
	case errors.Is(err, job.ErrJobRunning):
		s.writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, job.ErrNoKeywords):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "started",
		"keywords": req.Keywords,
	})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.controller.Stop()
	if errors.Is(err, job.ErrNoJob) {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handleResults(w http.ResponseWriter, _ *http.Request) {
	results := s.controller.Results()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total":   len(results),
		"results": results,
	})
}

// handleEvents streams the bus over SSE until the client disconnects or the
// bus drops the subscription.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.bus.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-sub.Events():
			if !open {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				s.logger.Warn("event marshal failed", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
