// Package api exposes the analysis pipeline over HTTP: submit a build,
// follow its progress as SSE, read back the stored history.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/buildsight/rca-cli/api/schemas"
	"github.com/buildsight/rca-cli/internal/config"
	"github.com/buildsight/rca-cli/internal/worker"
)

// DefaultWorkflow names the analysis flavor used when the client does not
// ask for one.
const DefaultWorkflow = "rca"

// Server serves the report API on top of the worker pool.
type Server struct {
	httpServer *http.Server
	pool       *worker.Pool
	runner     Runner
	store      ReportStore
	logger     *zap.Logger
}

// NewServer wires the routes. store may be nil; submissions then run without
// history persistence or replay.
func NewServer(cfg config.ServerConfig, runner Runner, store ReportStore, pool *worker.Pool, logger *zap.Logger) *Server {
	s := &Server{
		pool:   pool,
		runner: runner,
		store:  store,
		logger: logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Put("/api/report", s.handleSubmit)
	r.Get("/api/report", s.handleGet)
	r.Get("/api/report/watch", s.handleWatch)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}
	return s
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving the API.
func (s *Server) ListenAndServe() error {
	s.logger.Info("Serving report API", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type statusResponse struct {
	Status string `json:"status"`
}

// handleSubmit implements the get-or-submit contract: a pending build
// reports PENDING, a settled build replays its stored history, anything else
// queues a new job.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		http.Error(w, "target query parameter is required", http.StatusBadRequest)
		return
	}
	workflow := r.URL.Query().Get("workflow")
	if workflow == "" {
		workflow = DefaultWorkflow
	}

	if watcher := s.pool.Watch(jobKey(workflow, target)); watcher != nil {
		watcher.Close()
		writeJSON(w, http.StatusOK, statusResponse{Status: string(worker.StatusPending)})
		return
	}
	if events, ok := s.pool.Completed(jobKey(workflow, target)); ok {
		writeJSON(w, http.StatusOK, events)
		return
	}
	if s.store != nil {
		events, err := s.store.GetReport(r.Context(), workflow, target)
		if err != nil {
			s.logger.Error("Report lookup failed", zap.Error(err))
			http.Error(w, "report lookup failed", http.StatusInternalServerError)
			return
		}
		if events != nil {
			writeJSON(w, http.StatusOK, events)
			return
		}
	}

	s.pool.Submit(NewRCAJob(s.runner, s.store, workflow, target, s.logger))
	writeJSON(w, http.StatusOK, statusResponse{Status: string(worker.StatusPending)})
}

// handleGet reads back a build without submitting it.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		http.Error(w, "target query parameter is required", http.StatusBadRequest)
		return
	}
	workflow := r.URL.Query().Get("workflow")
	if workflow == "" {
		workflow = DefaultWorkflow
	}

	if watcher := s.pool.Watch(jobKey(workflow, target)); watcher != nil {
		watcher.Close()
		writeJSON(w, http.StatusOK, statusResponse{Status: string(worker.StatusPending)})
		return
	}
	if events, ok := s.pool.Completed(jobKey(workflow, target)); ok {
		writeJSON(w, http.StatusOK, events)
		return
	}
	if s.store != nil {
		events, err := s.store.GetReport(r.Context(), workflow, target)
		if err != nil {
			http.Error(w, "report lookup failed", http.StatusInternalServerError)
			return
		}
		if events != nil {
			writeJSON(w, http.StatusOK, events)
			return
		}
	}
	http.Error(w, "unknown build", http.StatusNotFound)
}

// handleWatch streams a pending job's events as SSE. When no job is pending
// the client is redirected to the stored report.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		http.Error(w, "target query parameter is required", http.StatusBadRequest)
		return
	}
	workflow := r.URL.Query().Get("workflow")
	if workflow == "" {
		workflow = DefaultWorkflow
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	watcher := s.pool.Watch(jobKey(workflow, target))
	if watcher == nil {
		// Settled or never submitted; the stored report is the source of
		// truth now.
		fmt.Fprint(w, "data: [true,\"redirect\"]\n\n")
		flush()
		return
	}
	defer watcher.Close()
	flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-watcher.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("Failed to encode event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flush()
			if ev.Kind == schemas.EventStatus {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
