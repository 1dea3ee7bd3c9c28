package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/ambuproxy/pkg/metrics"
)

const (
	defaultBackendTimeout   = 15 * time.Second
	defaultMaxResponseBytes = 10 << 20
)

// ProxiedRequest is the outbound half of one inbound call. It lives for the
// duration of that call only.
type ProxiedRequest struct {
	Service   Service
	Method    string
	Template  string
	Params    map[string]string
	Query     string
	Body      []byte
	Token     string
	RequestID string
}

// Path returns the backend path with parameters substituted.
func (p ProxiedRequest) Path() string {
	return expand(p.Template, p.Params)
}

// Response is a backend reply whose body is known to be JSON or empty.
type Response struct {
	Status int
	Body   []byte
}

// Client issues proxied requests against the backend origin.
type Client struct {
	baseURL          string
	http             *http.Client
	maxResponseBytes int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds every backend call.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client. Its Timeout is kept as is.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithMaxResponseBytes caps how much of a backend body is read.
func WithMaxResponseBytes(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxResponseBytes = n
		}
	}
}

// NewClient creates a client for the backend at baseURL, e.g. "http://127.0.0.1:8000".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		http:             &http.Client{Timeout: defaultBackendTimeout},
		maxResponseBytes: defaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string { return c.baseURL }

// Do sends p to the backend and returns its status and JSON body. Any
// failure to obtain a complete JSON (or empty) body is reported as an error
// wrapping ErrBackendUnavailable or ErrMalformedResponse. There is no retry.
func (c *Client) Do(ctx context.Context, p ProxiedRequest) (*Response, error) {
	const op = "gateway.client.do"
	service := string(p.Service)

	target := c.baseURL + p.Path()
	if p.Query != "" {
		target += "?" + p.Query
	}

	var body io.Reader = http.NoBody
	if len(p.Body) > 0 {
		body = bytes.NewReader(p.Body)
	}
	req, err := http.NewRequestWithContext(ctx, p.Method, target, body)
	if err != nil {
		metrics.RecordBackendFailure(service, "request")
		return nil, fmt.Errorf("%s: %w: %w", op, ErrBackendUnavailable, err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}
	if p.RequestID != "" {
		req.Header.Set("X-Request-ID", p.RequestID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordBackendFailure(service, failureReason(err))
		return nil, fmt.Errorf("%s: %s %s: %w: %w", op, p.Method, p.Path(), ErrBackendUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		metrics.RecordBackendFailure(service, failureReason(err))
		return nil, fmt.Errorf("%s: read body: %w: %w", op, ErrBackendUnavailable, err)
	}
	if int64(len(raw)) > c.maxResponseBytes {
		metrics.RecordBackendFailure(service, "oversized")
		return nil, fmt.Errorf("%s: body exceeds %d bytes: %w", op, c.maxResponseBytes, ErrMalformedResponse)
	}
	if len(bytes.TrimSpace(raw)) > 0 && !json.Valid(raw) {
		metrics.RecordBackendFailure(service, "malformed")
		return nil, fmt.Errorf("%s: status %d: %w", op, resp.StatusCode, ErrMalformedResponse)
	}

	metrics.RecordBackendRequest(service, strconv.Itoa(resp.StatusCode), float64(time.Since(start).Milliseconds()))
	return &Response{Status: resp.StatusCode, Body: raw}, nil
}

func failureReason(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "connection"
	}
}
