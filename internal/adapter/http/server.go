package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/fire-risk-service/internal/session"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sessions is the session store the API operates on.
type Sessions interface {
	Create() *session.Coordinator
	Get(id string) (*session.Coordinator, error)
	Close(id string) error
}

// Server exposes the session API alongside health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	sessions   Sessions
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the /v1/sessions API plus /healthz,
// /readyz, and /metrics routes.
func NewServer(addr string, sessions Sessions, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second, // covers a full weather lookup
			IdleTimeout:  60 * time.Second,
		},
		sessions: sessions,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /v1/sessions/{id}", s.withSession(s.handleGetSession))
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("PUT /v1/sessions/{id}/query", s.withSession(s.handleSetQuery))
	mux.HandleFunc("POST /v1/sessions/{id}/search", s.withSession(s.handleSearch))
	mux.HandleFunc("POST /v1/sessions/{id}/select", s.withSession(s.handleSelect))
	mux.HandleFunc("PUT /v1/sessions/{id}/viewport", s.withSession(s.handleViewport))
	mux.HandleFunc("GET /v1/sessions/{id}/marker", s.withSession(s.handleMarker))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
