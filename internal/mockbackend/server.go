// Package mockbackend is an in-memory stand-in for the ambulance-booking
// backend. It speaks the backend's paths and JSON shapes closely enough to
// drive the gateway end to end during local development and in tests.
package mockbackend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/ambuproxy/pkg/logger"
)

// Booking and bid states.
const (
	statusPending  = "pending"
	statusAccepted = "accepted"
	statusApproved = "approved"
)

// Server holds the fixture data and issued tokens.
type Server struct {
	mu sync.RWMutex

	logger     logger.Logger
	fixedToken string

	accounts map[string]account
	tokens   map[string]string // token -> user id

	users     *collection
	bookings  *collection
	bids      *collection
	hospitals *collection
	doctors   *collection
}

// Option configures a Server.
type Option func(*Server)

// WithToken registers a bearer token that is always accepted as the admin user.
func WithToken(token string) Option {
	return func(s *Server) {
		s.fixedToken = strings.TrimSpace(token)
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a server seeded with fixtures.
func New(opts ...Option) *Server {
	s := &Server{
		logger:    logger.Nop(),
		accounts:  make(map[string]account),
		tokens:    make(map[string]string),
		users:     newCollection(),
		bookings:  newCollection(),
		bids:      newCollection(),
		hospitals: newCollection(),
		doctors:   newCollection(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fixedToken != "" {
		s.tokens[s.fixedToken] = adminID
	}
	s.seed()
	return s
}

// Handler returns the backend's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /accounts/login/{$}", s.handleLogin)
	mux.HandleFunc("POST /accounts/logout/{$}", s.authed(s.handleLogout))
	mux.HandleFunc("POST /accounts/password-reset/{$}", s.handlePasswordReset)
	mux.HandleFunc("POST /accounts/password-reset/confirm/{$}", s.handlePasswordResetConfirm)
	mux.HandleFunc("GET /accounts/statistics/{$}", s.authed(s.handleStatistics))
	s.resource(mux, "/accounts/users/", s.users)

	mux.HandleFunc("GET /bookings/{$}", s.authed(s.listBookings(nil)))
	mux.HandleFunc("GET /bookings/instant/{$}", s.authed(s.listBookings(isInstant)))
	mux.HandleFunc("POST /bookings/instant/{$}", s.authed(s.createBooking(true)))
	mux.HandleFunc("POST /bookings/scheduled/{$}", s.authed(s.createBooking(false)))
	mux.HandleFunc("GET /bookings/new-requests/{$}", s.authed(s.listBookings(isPending)))
	mux.HandleFunc("GET /bookings/{id}/{$}", s.authed(s.getOne(s.bookings)))
	mux.HandleFunc("PATCH /bookings/{id}/{$}", s.authed(s.updateOne(s.bookings, false)))
	mux.HandleFunc("DELETE /bookings/{id}/{$}", s.authed(s.deleteOne(s.bookings)))

	s.resource(mux, "/bids/", s.bids)
	mux.HandleFunc("POST /bids/{id}/approve/{$}", s.authed(s.handleApproveBid))

	s.resource(mux, "/hospitals/", s.hospitals)
	s.resource(mux, "/doctors/", s.doctors)

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, detail("Not found."))
	})
	return s.logRequests(mux)
}

// resource registers list, create and item routes for a plain collection.
func (s *Server) resource(mux *http.ServeMux, prefix string, coll *collection) {
	mux.HandleFunc("GET "+prefix+"{$}", s.authed(s.listAll(coll)))
	mux.HandleFunc("POST "+prefix+"{$}", s.authed(s.createOne(coll)))
	item := prefix + "{id}/{$}"
	mux.HandleFunc("GET "+item, s.authed(s.getOne(coll)))
	mux.HandleFunc("PUT "+item, s.authed(s.updateOne(coll, true)))
	mux.HandleFunc("PATCH "+item, s.authed(s.updateOne(coll, false)))
	mux.HandleFunc("DELETE "+item, s.authed(s.deleteOne(coll)))
}

// Run serves the backend on addr until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "mock backend listening", logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// authed enforces a known bearer token the way the backend does.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, detail("Authentication credentials were not provided."))
			return
		}
		s.mu.RLock()
		_, known := s.tokens[token]
		s.mu.RUnlock()
		if !known {
			writeJSON(w, http.StatusUnauthorized, detail("Invalid token."))
			return
		}
		next(w, r)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "mock backend request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.String("request_id", r.Header.Get("X-Request-ID")),
			logger.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) issueToken(userID string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	s.tokens[token] = userID
	return token
}

func detail(msg string) map[string]string {
	return map[string]string{"detail": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readRecord decodes a JSON object body. An empty body yields an empty record.
func readRecord(w http.ResponseWriter, r *http.Request) (Record, bool) {
	rec := Record{}
	err := json.NewDecoder(r.Body).Decode(&rec)
	if errors.Is(err, io.EOF) {
		return Record{}, true
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, detail("JSON parse error - "+err.Error()))
		return nil, false
	}
	if rec == nil {
		rec = Record{}
	}
	return rec, true
}
