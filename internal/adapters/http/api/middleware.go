package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/okian/ambuproxy/internal/gateway"
	"github.com/okian/ambuproxy/pkg/logger"
	"github.com/okian/ambuproxy/pkg/metrics"
	"github.com/rs/cors"
)

// HTTP status code thresholds.
const (
	statusBadRequest      = 400
	statusNotFound        = 404
	statusTooManyRequests = 429
	statusInternalError   = 500
)

const corsMaxAgeSeconds = 300

// Middleware decorates an http.Handler.
type Middleware func(http.Handler) http.Handler

// MetricsMiddleware wraps a handler to record Prometheus metrics under endpoint.
func MetricsMiddleware(next http.Handler, endpoint string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Milliseconds())
		statusCodeStr := strconv.Itoa(wrapped.statusCode)
		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, durationMs)
		if wrapped.statusCode >= statusBadRequest {
			metrics.RecordErrorByEndpoint(endpoint, r.Method, getErrorType(wrapped.statusCode))
		}
	})
}

// Recovery turns a panic into a JSON 500 and logs it with its stack.
func Recovery(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					metrics.RecordPanicRecovered()
					log.Error(r.Context(), "panic recovered",
						logger.String("method", r.Method),
						logger.String("path", r.URL.Path),
						logger.String("request_id", r.Header.Get(gateway.RequestIDHeader)),
						logger.String("panic", fmt.Sprint(rec)),
						logger.String("stack", string(debug.Stack())),
					)
					writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID makes sure every request carries an X-Request-ID. An inbound id
// is kept; otherwise a uuid is generated. The id is echoed on the response and
// left on the request header so the gateway forwards it to the backend.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(gateway.RequestIDHeader)
			if id == "" {
				id = uuid.New().String()
				r.Header.Set(gateway.RequestIDHeader, id)
			}
			w.Header().Set(gateway.RequestIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog writes one line per request. Tokens and bodies are never logged.
func AccessLog(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			fields := []logger.Field{
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", wrapped.statusCode),
				logger.Duration("duration", time.Since(start)),
				logger.String("request_id", r.Header.Get(gateway.RequestIDHeader)),
			}
			if wrapped.statusCode >= statusInternalError {
				log.Warn(r.Context(), "request completed", fields...)
				return
			}
			log.Info(r.Context(), "request completed", fields...)
		})
	}
}

// CORS admits the configured browser origins. Preflight requests are answered
// here and never reach the gateway.
func CORS(origins []string) Middleware {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Authorization", "Content-Type", gateway.RequestIDHeader},
		ExposedHeaders:   []string{gateway.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           corsMaxAgeSeconds,
	})
	return c.Handler
}

// getErrorType returns a standardized error type based on HTTP status code.
func getErrorType(statusCode int) string {
	switch {
	case statusCode >= statusInternalError:
		return "server_error"
	case statusCode == statusTooManyRequests:
		return "rate_limit"
	case statusCode == statusNotFound:
		return "not_found"
	case statusCode >= statusBadRequest:
		return "client_error"
	default:
		return "unknown"
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
