// Package server exposes the decision engine over HTTP: a beacon endpoint
// that feeds raw browser events into per-visitor engine sessions, the pg.js
// collector script, and read-only APIs over experiences and the decision
// audit log.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/popgate/popgate/internal/config"
	"github.com/popgate/popgate/internal/store"
)

type Server struct {
	store     store.Store
	cfg       config.Server
	log       *slog.Logger
	router    chi.Router
	sessions  *sessionRegistry
	startTime time.Time
}

func New(st store.Store, cfg config.Server, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	srv := &Server{
		store:     st,
		cfg:       cfg,
		log:       log,
		router:    chi.NewRouter(),
		startTime: time.Now(),
	}
	srv.sessions = newSessionRegistry(srv)
	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)

	s.router.Get("/health", s.handleHealth)
	s.router.Post("/b", s.handleBeacon)
	s.router.Options("/b", s.handleBeacon)
	s.router.Get("/pg.js", s.handleClientJS)
	s.router.Get("/api/experiences", s.handleExperiences)
	s.router.Get("/api/decisions", s.handleDecisions)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Start runs the HTTP server and the session sweeper until the listener
// fails.
func (s *Server) Start() error {
	s.sessions.startSweeper(s.cfg.SessionTTL)
	defer s.sessions.stopSweeper()

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.log.Info("popgate server listening", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Store exposes the backing store for tests.
func (s *Server) Store() store.Store {
	return s.store
}
