// Package server exposes the governance control plane over HTTP: the
// governance-first /run gate, manual review and admin override
// endpoints, debug views, health, and Prometheus metrics.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/novapact/gcu/pkg/config"
	"github.com/novapact/gcu/pkg/governance"
	"github.com/novapact/gcu/pkg/identity"
	"github.com/novapact/gcu/pkg/triage"
)

// ClassifierFactory builds the capability classifier for a loaded
// bundle. The default wires the keyword scorer.
type ClassifierFactory func(*triage.Bundle) triage.Classifier

// Server holds the wired control plane.
type Server struct {
	cfg        *config.Config
	manager    *governance.Manager
	journal    *governance.Journal
	killSwitch *config.KillSwitch
	extractor  *identity.Extractor
	metrics    *Metrics
	logger     *slog.Logger
	classify   ClassifierFactory
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithIdentityExtractor enables bearer-token identity resolution.
func WithIdentityExtractor(e *identity.Extractor) Option {
	return func(s *Server) { s.extractor = e }
}

// WithKillSwitch attaches a live kill switch. Without one the static
// config value applies.
func WithKillSwitch(ks *config.KillSwitch) Option {
	return func(s *Server) { s.killSwitch = ks }
}

// WithClassifierFactory replaces the default keyword classifier.
func WithClassifierFactory(f ClassifierFactory) Option {
	return func(s *Server) { s.classify = f }
}

// WithMetrics replaces the server's metrics set. Useful when the caller
// owns the registry.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server over the given manager and journal.
func New(cfg *config.Config, manager *governance.Manager, journal *governance.Journal, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		manager: manager,
		journal: journal,
		logger:  slog.Default(),
		classify: func(b *triage.Bundle) triage.Classifier {
			return triage.NewKeywordClassifier(b)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.killSwitch == nil {
		s.killSwitch = config.NewKillSwitch(cfg, s.logger)
	}
	return s
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	r.Use(s.metrics.HTTPMiddleware)

	r.Get("/health", healthHandler)
	r.Method("GET", "/metrics", s.metrics.Handler())

	r.Post("/run", s.runHandler)
	r.Post("/review/{run_id}", s.reviewHandler)
	r.Post("/admin/override/{run_id}", s.overrideHandler)

	r.Get("/debug/config", s.debugConfigHandler)
	r.Get("/debug/status/{run_id}", s.debugStatusHandler)
	r.Get("/debug/audit/{run_id}", s.debugAuditHandler)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resolveIdentity merges token claims over the body's actor fields.
// Body fields stay authoritative when no usable token is present.
func (s *Server) resolveIdentity(r *http.Request, actor, role, authType string) (string, string, string) {
	if s.extractor == nil {
		return actor, role, authType
	}
	id := s.extractor.FromRequest(r)
	if id == nil {
		return actor, role, authType
	}
	return id.Actor, id.Role, id.AuthType
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
