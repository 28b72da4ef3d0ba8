// Package server provides the local HTTP status server for Safe Warner.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/safewarner/internal/bus"
	"github.com/ayusman/safewarner/internal/engine"
	"github.com/ayusman/safewarner/internal/store"
)

// Config holds the server configuration.
type Config struct {
	Engine *engine.Supervisor
	Store  *store.Store
	Bus    *bus.Bus
}

// Server represents the HTTP status server for the Safe Warner engine.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time

	mu      sync.Mutex
	httpSrv *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Engine != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
	}

	if s.config.Store != nil {
		s.mux.HandleFunc("/api/session/stats", s.handleSessionStats)
	}

	// Register event stream endpoint if Bus is configured
	if s.config.Bus != nil {
		s.mux.Handle("/api/events", NewEventsHandler(s.config.Bus))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	writeJSON(w, response)
}

// handleStatus handles GET requests to /api/status with the current
// engine snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.config.Engine.Snapshot()
	if snap == nil {
		http.Error(w, "Engine not started", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, snap)
}

// handleSessionStats handles GET requests to /api/session/stats.
func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.config.Store.Sessions().Stats()
	if err != nil {
		http.Error(w, "Failed to load session stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, stats)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe starts the HTTP server on the given address. It blocks
// until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	s.httpSrv = &http.Server{Addr: addr, Handler: s}
	srv := s.httpSrv
	s.mu.Unlock()

	return srv.ListenAndServe()
}

// Shutdown stops the HTTP server, waiting for in-flight requests up to
// the context deadline. It is a no-op if the server never started.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
