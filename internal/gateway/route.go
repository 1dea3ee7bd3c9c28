package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// Service names a backend area. Its only local use is the fixed message
// returned when the backend cannot be reached.
type Service string

// Backend areas served through the gateway.
const (
	ServiceAuth       Service = "Authentication"
	ServiceUser       Service = "User"
	ServiceStatistics Service = "Statistics"
	ServiceBooking    Service = "Booking"
	ServiceBid        Service = "Bid"
	ServiceHospital   Service = "Hospital"
	ServiceDoctor     Service = "Doctor"
)

var knownServices = []Service{
	ServiceAuth, ServiceUser, ServiceStatistics, ServiceBooking,
	ServiceBid, ServiceHospital, ServiceDoctor,
}

// UnavailableMessage is the body text of the 500 answered when a call to s fails.
func (s Service) UnavailableMessage() string {
	return string(s) + " service unavailable"
}

// supportedMethods bounds what a route may allow-list.
var supportedMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete,
}

// Method describes how one allow-listed HTTP method of a route is forwarded.
type Method struct {
	// Backend is the backend path template, e.g. "/bids/{id}/approve/".
	Backend string
	// Auth requires a bearer token and forwards it.
	Auth bool
	// Filter optionally rewrites the backend response before it is relayed.
	Filter *Filter
}

// Route is one inbound endpoint and the explicit mapping from HTTP method to
// forwarding rule.
type Route struct {
	// Name labels metrics and logs, e.g. "bids_approve".
	Name string
	// Pattern is the inbound ServeMux pattern without method, e.g. "/api/bids/{id}/approve".
	Pattern string
	Service Service
	Methods map[string]Method
}

// Allow returns the sorted allow-list as sent in the Allow header.
func (r Route) Allow() string {
	methods := make([]string, 0, len(r.Methods))
	for m := range r.Methods {
		methods = append(methods, m)
	}
	slices.Sort(methods)
	return strings.Join(methods, ", ")
}

// Params returns the wildcard names captured by the inbound pattern, in order.
func (r Route) Params() []string {
	return placeholders(r.Pattern)
}

// Validate checks a route table exhaustively and reports every problem found.
// A gateway never starts on a table that fails validation.
func Validate(routes []Route) error {
	var errs []error
	fail := func(route Route, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w %q: %s", ErrInvalidRoute, route.Pattern, fmt.Sprintf(format, args...)))
	}

	if len(routes) == 0 {
		return fmt.Errorf("%w: empty route table", ErrInvalidRoute)
	}

	names := make(map[string]bool, len(routes))
	patterns := make(map[string]bool, len(routes))
	for _, route := range routes {
		if route.Name == "" {
			fail(route, "missing name")
		} else if names[route.Name] {
			fail(route, "duplicate name %q", route.Name)
		}
		names[route.Name] = true

		if !strings.HasPrefix(route.Pattern, "/api/") {
			fail(route, "pattern must start with /api/")
		}
		if patterns[route.Pattern] {
			fail(route, "duplicate pattern")
		}
		patterns[route.Pattern] = true

		if !slices.Contains(knownServices, route.Service) {
			fail(route, "unknown service %q", route.Service)
		}

		if len(route.Methods) == 0 {
			fail(route, "no methods allow-listed")
		}

		params := route.Params()
		if err := checkPlaceholders(route.Pattern); err != nil {
			fail(route, "pattern: %v", err)
		}
		for name, m := range route.Methods {
			if !slices.Contains(supportedMethods, name) {
				fail(route, "unsupported method %q", name)
			}
			if !strings.HasPrefix(m.Backend, "/") {
				fail(route, "%s: backend template must start with /", name)
			}
			if err := checkPlaceholders(m.Backend); err != nil {
				fail(route, "%s: backend template: %v", name, err)
			}
			for _, p := range placeholders(m.Backend) {
				if !slices.Contains(params, p) {
					fail(route, "%s: backend parameter {%s} not captured by pattern", name, p)
				}
			}
			if m.Filter != nil && (m.Filter.Name == "" || m.Filter.Apply == nil) {
				fail(route, "%s: incomplete filter", name)
			}
		}
	}
	return errors.Join(errs...)
}

// placeholders extracts the {name} segments of a path template.
func placeholders(tmpl string) []string {
	var out []string
	for _, seg := range strings.Split(tmpl, "/") {
		if len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}' {
			out = append(out, seg[1:len(seg)-1])
		}
	}
	return out
}

// checkPlaceholders rejects braces that do not form a whole {name} segment.
func checkPlaceholders(tmpl string) error {
	for _, seg := range strings.Split(tmpl, "/") {
		if !strings.ContainsAny(seg, "{}") {
			continue
		}
		if len(seg) < 3 || seg[0] != '{' || seg[len(seg)-1] != '}' || strings.ContainsAny(seg[1:len(seg)-1], "{}.") {
			return fmt.Errorf("malformed segment %q", seg)
		}
	}
	return nil
}

// expand substitutes path parameters into a backend template.
func expand(tmpl string, params map[string]string) string {
	segs := strings.Split(tmpl, "/")
	for i, seg := range segs {
		if len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}' {
			segs[i] = params[seg[1:len(seg)-1]]
		}
	}
	return strings.Join(segs, "/")
}
