// Package server provides the HTTP server for the mudra application.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
)

// Config holds the server configuration. Every collaborator is optional;
// routes are only registered for the ones that are set.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       api.Controller
	Events    EventSource
}

// Server represents the HTTP server for the mudra application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	events *EventsHandler
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

	if s.config.App != nil {
		calibrationHandler := api.NewCalibrationHandler(s.config.App)
		s.mux.Handle("/api/calibration", calibrationHandler)
		s.mux.Handle("/api/calibration/", calibrationHandler)
	}

	if s.config.Store != nil {
		historyHandler := api.NewHistoryHandler(s.config.Store)
		s.mux.Handle("/api/calibrations", historyHandler)
		s.mux.Handle("/api/calibrations/", historyHandler)
	}

	// Processed event feed for external renderers
	if s.config.Events != nil {
		s.events = NewEventsHandler(s.config.Events)
		s.mux.Handle("/api/events", s.events)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
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

	response := map[string]any{
		"status": "ok",
		"uptime": uptime.String(),
	}
	if s.events != nil {
		response["clients"] = s.events.Clients()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Close detaches the event feed from its source.
func (s *Server) Close() {
	if s.events != nil {
		s.events.Close()
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
