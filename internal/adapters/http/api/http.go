// Package api wires the gateway routes and the operational endpoints onto an
// http.ServeMux and wraps them in the process middleware chain.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/ambuproxy/internal/gateway"
	"github.com/okian/ambuproxy/pkg/logger"
	"github.com/okian/ambuproxy/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteSource yields the gateway route handlers to register.
type RouteSource interface {
	Handlers() []gateway.Handler
}

// Server wires HTTP routes for the gateway.
type Server struct {
	routes         RouteSource
	logger         logger.Logger
	allowedOrigins []string
	healthHandler  *HealthHandler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used by the access log and panic recovery.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAllowedOrigins sets the browser origins accepted by CORS.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// NewServer creates a server around the given routes.
func NewServer(routes RouteSource, opts ...Option) *Server {
	s := &Server{
		routes:        routes,
		logger:        logger.Nop(),
		healthHandler: NewHealthHandler(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches the operational endpoints and every gateway route to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/healthz", MetricsMiddleware(http.HandlerFunc(s.healthHandler.HandleHealth), "healthz"))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	for _, h := range s.routes.Handlers() {
		mux.Handle(h.Pattern, MetricsMiddleware(h.Handler, h.Name))
	}
	mux.Handle("/api/", MetricsMiddleware(http.HandlerFunc(gateway.NotFound), "not_found"))
}

// Wrap applies the middleware chain: recovery, request id, access log, CORS.
func (s *Server) Wrap(next http.Handler) http.Handler {
	h := CORS(s.allowedOrigins)(next)
	h = AccessLog(s.logger)(h)
	h = RequestID()(h)
	return Recovery(s.logger)(h)
}

// Handler builds a fresh mux, registers everything and wraps it.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	s.Register(ctx, mux)
	return s.Wrap(mux)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
