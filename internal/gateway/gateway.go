// Package gateway forwards browser calls to the ambulance-booking backend.
//
// Each inbound route carries an explicit allow-list mapping HTTP methods to a
// forwarding rule. A call is checked locally (method, bearer token, path
// parameters, body), forwarded once with the caller's token, and the backend's
// status and JSON body are relayed unchanged. Two rules post-process the
// backend response: the scheduled-bookings split and the admin login gate.
// Nothing is retained between calls.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/ambuproxy/pkg/logger"
	"github.com/okian/ambuproxy/pkg/metrics"
)

const (
	defaultMaxBodyBytes = 1 << 20

	// RequestIDHeader carries the correlation id to the backend.
	RequestIDHeader = "X-Request-ID"
)

// Local error messages.
const (
	msgTokenRequired = "Authorization token required"
	msgBodyTooLarge  = "Request body too large"
	msgInvalidBody   = "Request body must be valid JSON"
	msgNotFound      = "Not found"
)

// Backend is the outbound side of the gateway.
type Backend interface {
	Do(ctx context.Context, p ProxiedRequest) (*Response, error)
}

// Gateway serves the route table against a Backend.
type Gateway struct {
	backend      Backend
	routes       []Route
	logger       logger.Logger
	maxBodyBytes int64
}

// Option applies a configuration option to the Gateway.
type Option func(*Gateway)

// WithRoutes replaces DefaultRoutes.
func WithRoutes(routes []Route) Option {
	return func(g *Gateway) {
		g.routes = routes
	}
}

// WithLogger sets the logger used for failure lines.
func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithMaxBodyBytes caps inbound request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxBodyBytes = n
		}
	}
}

// New builds a gateway and validates its route table.
func New(backend Backend, opts ...Option) (*Gateway, error) {
	if backend == nil {
		return nil, errors.New("gateway: nil backend")
	}
	g := &Gateway{
		backend:      backend,
		routes:       DefaultRoutes(),
		logger:       logger.Nop(),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := Validate(g.routes); err != nil {
		return nil, err
	}
	return g, nil
}

// Routes returns the validated route table.
func (g *Gateway) Routes() []Route {
	return g.routes
}

// Handler is a registrable route handler.
type Handler struct {
	Name    string
	Pattern string
	http.Handler
}

// Handlers returns one handler per route, in table order.
func (g *Gateway) Handlers() []Handler {
	out := make([]Handler, 0, len(g.routes))
	for _, route := range g.routes {
		out = append(out, Handler{
			Name:    route.Name,
			Pattern: route.Pattern,
			Handler: &routeHandler{gw: g, route: route, allow: route.Allow(), params: route.Params()},
		})
	}
	return out
}

// Register attaches every route and a JSON 404 for unknown /api/ paths to mux.
func (g *Gateway) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	for _, h := range g.Handlers() {
		mux.Handle(h.Pattern, h.Handler)
	}
	mux.HandleFunc("/api/", NotFound)
}

// NotFound answers unknown API paths with a JSON 404.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, msgNotFound)
}

type routeHandler struct {
	gw     *Gateway
	route  Route
	allow  string
	params []string
}

func (h *routeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	route := h.route

	m, ok := route.Methods[r.Method]
	if !ok {
		metrics.RecordRejection(route.Name, "method_not_allowed")
		w.Header().Set("Allow", h.allow)
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed", r.Method))
		return
	}

	var token string
	if m.Auth {
		token, ok = bearerToken(r)
		if !ok {
			metrics.RecordRejection(route.Name, "missing_token")
			writeError(w, http.StatusUnauthorized, msgTokenRequired)
			return
		}
	}

	params := make(map[string]string, len(h.params))
	for _, name := range h.params {
		v := strings.TrimSpace(r.PathValue(name))
		if v == "" {
			metrics.RecordRejection(route.Name, "missing_parameter")
			writeError(w, http.StatusBadRequest, "Missing required parameter: "+name)
			return
		}
		params[name] = url.PathEscape(v)
	}

	body, status, msg := h.readBody(w, r)
	if status != 0 {
		metrics.RecordRejection(route.Name, "invalid_body")
		writeError(w, status, msg)
		return
	}

	p := ProxiedRequest{
		Service:   route.Service,
		Method:    r.Method,
		Template:  m.Backend,
		Params:    params,
		Query:     r.URL.RawQuery,
		Body:      body,
		Token:     token,
		RequestID: r.Header.Get(RequestIDHeader),
	}

	resp, err := h.gw.backend.Do(ctx, p)
	if err != nil {
		h.fail(ctx, w, p, err)
		return
	}

	respStatus, respBody := resp.Status, resp.Body
	if m.Filter != nil {
		respStatus, respBody, err = m.Filter.Apply(resp.Status, resp.Body)
		if err != nil {
			h.fail(ctx, w, p, err)
			return
		}
		if respStatus != resp.Status || !bytes.Equal(respBody, resp.Body) {
			metrics.RecordResponseOverride(route.Name, m.Filter.Name)
		}
	}

	relay(w, respStatus, respBody)
}

// readBody reads the inbound body under the size cap. A non-zero status
// reports a local client error.
func (h *routeHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, int, string) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, 0, ""
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.gw.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, msgBodyTooLarge
		}
		return nil, http.StatusBadRequest, msgInvalidBody
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, 0, ""
	}
	if !json.Valid(raw) {
		return nil, http.StatusBadRequest, msgInvalidBody
	}
	return raw, 0, ""
}

func (h *routeHandler) fail(ctx context.Context, w http.ResponseWriter, p ProxiedRequest, err error) {
	h.gw.logger.Error(ctx, "backend request failed",
		logger.String("route", h.route.Name),
		logger.String("method", p.Method),
		logger.String("service", string(p.Service)),
		logger.String("backend_path", p.Path()),
		logger.String("request_id", p.RequestID),
		logger.Error(err),
	)
	writeError(w, http.StatusInternalServerError, p.Service.UnavailableMessage())
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	const prefix = "bearer "
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(prefix):])
	return token, token != ""
}
