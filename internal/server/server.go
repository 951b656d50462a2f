// Package server provides the HTTP and WebSocket surface of natya.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/natya/internal/server/api"
	"github.com/ayusman/natya/internal/store"
	"github.com/ayusman/natya/pkg/logger"
	"github.com/ayusman/natya/pkg/metrics"
)

// DefaultBroadcastInterval paces WebSocket pose updates (~15 per second).
const DefaultBroadcastInterval = 66 * time.Millisecond

// Config holds the server configuration.
type Config struct {
	StaticDir         string
	Store             *store.Store
	App               api.Controller
	Metrics           *metrics.Manager
	Logger            logger.Logger
	BroadcastInterval time.Duration
}

// Server represents the HTTP server for the natya service.
type Server struct {
	config  Config
	mux     *http.ServeMux
	handler http.Handler
	stream  *PoseStream
	log     logger.Logger
	start   time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.BroadcastInterval <= 0 {
		config.BroadcastInterval = DefaultBroadcastInterval
	}

	api.SetLogger(config.Logger.Named("api"))

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		log:    config.Logger.Named("server"),
		start:  time.Now(),
	}
	s.setupRoutes()
	s.handler = instrument(s.mux, config.Metrics)
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		rigs := api.NewRigHandler(s.config.Store, s.config.App)
		s.mux.Handle("/api/rigs", rigs)
		s.mux.Handle("/api/rigs/", rigs)
	}

	if s.config.App != nil {
		api.NewPoseHandler(s.config.App).Register(s.mux)

		s.stream = NewPoseStream(s.config.App.Engine(), s.config.BroadcastInterval, s.log, s.config.Metrics)
		s.mux.Handle("/api/pose/ws", s.stream)
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics.Handler())
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Run drives the WebSocket broadcaster until ctx is done.
func (s *Server) Run(ctx context.Context) {
	if s.stream == nil {
		<-ctx.Done()
		return
	}
	s.stream.Run(ctx)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.App != nil {
		response["state"] = s.config.App.Engine().State().String()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}
