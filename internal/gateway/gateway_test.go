package gateway_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/ambuproxy/internal/gateway"
	"github.com/okian/ambuproxy/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// seenRequest is what the fake backend observed.
type seenRequest struct {
	Method        string
	Path          string
	RawQuery      string
	ContentType   string
	Authorization string
	RequestID     string
	Body          []byte
}

type fakeBackend struct {
	srv    *httptest.Server
	calls  atomic.Int64
	mu     sync.Mutex
	last   seenRequest
	status int
	body   string
	delay  time.Duration
}

func newFakeBackend(status int, body string) *fakeBackend {
	fb := &fakeBackend{status: status, body: body}
	fb.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.calls.Add(1)
		raw, _ := io.ReadAll(r.Body)
		fb.mu.Lock()
		fb.last = seenRequest{
			Method:        r.Method,
			Path:          r.URL.EscapedPath(),
			RawQuery:      r.URL.RawQuery,
			ContentType:   r.Header.Get("Content-Type"),
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
			Body:          raw,
		}
		status, body, delay := fb.status, fb.body, fb.delay
		fb.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if body != "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	return fb
}

func (fb *fakeBackend) Last() seenRequest {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.last
}

// Set changes the canned reply.
func (fb *fakeBackend) Set(status int, body string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.status, fb.body = status, body
}

func (fb *fakeBackend) SetDelay(d time.Duration) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.delay = d
}

func (fb *fakeBackend) Close() { fb.srv.Close() }

func newMux(backendURL string, opts ...gateway.Option) *http.ServeMux {
	return newMuxWithClient(gateway.NewClient(backendURL), opts...)
}

func newMuxWithClient(client *gateway.Client, opts ...gateway.Option) *http.ServeMux {
	gw, err := gateway.New(client, opts...)
	So(err, ShouldBeNil)
	mux := http.NewServeMux()
	gw.Register(context.Background(), mux)
	return mux
}

// concretePath fills every wildcard of a pattern with "42".
func concretePath(pattern string) string {
	return strings.ReplaceAll(pattern, "{id}", "42")
}

func do(mux http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

var bearer = map[string]string{"Authorization": "Bearer tok-123"}

func errorBody(w *httptest.ResponseRecorder) string {
	var e struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	return e.Error
}

func TestMethodAllowList(t *testing.T) {
	Convey("Given a gateway in front of a backend", t, func() {
		fb := newFakeBackend(http.StatusOK, `{}`)
		Reset(fb.Close)
		mux := newMux(fb.srv.URL)

		Convey("When every route is called with a method outside its allow-list", func() {
			for _, route := range gateway.DefaultRoutes() {
				var method string
				for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
					if _, ok := route.Methods[m]; !ok {
						method = m
						break
					}
				}
				So(method, ShouldNotBeEmpty)

				w := do(mux, method, concretePath(route.Pattern), "", bearer)

				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Header().Get("Allow"), ShouldEqual, route.Allow())
				So(errorBody(w), ShouldEqual, "Method "+method+" not allowed")
			}

			Convey("Then no backend call is made", func() {
				So(fb.calls.Load(), ShouldEqual, int64(0))
			})
		})

		Convey("When the Allow header is built", func() {
			route := gateway.Route{Methods: map[string]gateway.Method{
				http.MethodPost: {}, http.MethodDelete: {}, http.MethodGet: {},
			}}

			Convey("Then methods are sorted and comma separated", func() {
				So(route.Allow(), ShouldEqual, "DELETE, GET, POST")
			})
		})
	})
}

func TestBearerTokenRequired(t *testing.T) {
	Convey("Given a gateway in front of a backend", t, func() {
		fb := newFakeBackend(http.StatusOK, `{}`)
		Reset(fb.Close)
		mux := newMux(fb.srv.URL)

		Convey("When every authenticated operation is called without a token", func() {
			checked := 0
			for _, route := range gateway.DefaultRoutes() {
				for method, m := range route.Methods {
					if !m.Auth {
						continue
					}
					checked++
					w := do(mux, method, concretePath(route.Pattern), `{}`, nil)
					So(w.Code, ShouldEqual, http.StatusUnauthorized)
					So(errorBody(w), ShouldEqual, "Authorization token required")
				}
			}

			Convey("Then all of them are refused with zero backend calls", func() {
				So(checked, ShouldBeGreaterThan, 20)
				So(fb.calls.Load(), ShouldEqual, int64(0))
			})
		})

		Convey("When the header is not a usable bearer credential", func() {
			for _, h := range []string{"Basic dXNlcjpwYXNz", "Bearer", "Bearer    ", "tok-123"} {
				w := do(mux, http.MethodGet, "/api/bids", "", map[string]string{"Authorization": h})
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
			}

			Convey("Then no backend call is made", func() {
				So(fb.calls.Load(), ShouldEqual, int64(0))
			})
		})

		Convey("When the scheme is written in lower case", func() {
			w := do(mux, http.MethodGet, "/api/bids", "", map[string]string{"Authorization": "bearer tok-9"})

			Convey("Then the token is accepted and forwarded canonically", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(fb.Last().Authorization, ShouldEqual, "Bearer tok-9")
			})
		})

		Convey("When a public operation is called without a token", func() {
			w := do(mux, http.MethodPost, "/api/auth/login", `{"email":"a@b.c","password":"x"}`, nil)

			Convey("Then it is forwarded without an Authorization header", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(fb.calls.Load(), ShouldEqual, int64(1))
				So(fb.Last().Authorization, ShouldBeEmpty)
			})
		})
	})
}

func TestPassThrough(t *testing.T) {
	Convey("Given a backend answering with an arbitrary status and body", t, func() {
		const backendBody = `{"detail":"Not allowed for this bid","code":"bid_locked"}`
		fb := newFakeBackend(http.StatusUnprocessableEntity, backendBody)
		Reset(fb.Close)
		mux := newMux(fb.srv.URL)

		Convey("When every operation without a response filter is proxied", func() {
			for _, route := range gateway.DefaultRoutes() {
				for method, m := range route.Methods {
					if m.Filter != nil {
						continue
					}
					body := ""
					if method != http.MethodGet && method != http.MethodDelete {
						body = `{"price": 1500, "note": "fast"}`
					}
					w := do(mux, method, concretePath(route.Pattern), body, bearer)

					So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
					So(w.Body.String(), ShouldEqual, backendBody)
					So(w.Header().Get("Content-Type"), ShouldEqual, "application/json")

					seen := fb.Last()
					So(seen.Method, ShouldEqual, method)
					So(seen.Path, ShouldEqual, strings.ReplaceAll(m.Backend, "{id}", "42"))
					So(seen.ContentType, ShouldEqual, "application/json")
					So(string(seen.Body), ShouldEqual, body)
					if m.Auth {
						So(seen.Authorization, ShouldEqual, "Bearer tok-123")
					} else {
						So(seen.Authorization, ShouldBeEmpty)
					}
				}
			}
		})

		Convey("When a query string is present", func() {
			fb.Set(http.StatusOK, `[]`)
			w := do(mux, http.MethodGet, "/api/hospitals?city=Nairobi&page=2", "", bearer)

			Convey("Then it is forwarded verbatim", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(fb.Last().RawQuery, ShouldEqual, "city=Nairobi&page=2")
				So(fb.Last().Path, ShouldEqual, "/hospitals/")
			})
		})

		Convey("When the caller sends a request id", func() {
			fb.Set(http.StatusOK, `{}`)
			do(mux, http.MethodGet, "/api/statistics", "", map[string]string{
				"Authorization": "Bearer tok-123",
				"X-Request-ID":  "req-7",
			})

			Convey("Then it is propagated to the backend", func() {
				So(fb.Last().RequestID, ShouldEqual, "req-7")
			})
		})

		Convey("When the backend answers 204 with no body", func() {
			fb.Set(http.StatusNoContent, "")
			w := do(mux, http.MethodDelete, "/api/bids/42", "", bearer)

			Convey("Then the empty reply is relayed", func() {
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(w.Body.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestInstantBookingCreated(t *testing.T) {
	Convey("Given a backend that creates instant bookings", t, func() {
		const booking = `{"id":17,"pickup_location":"Kenyatta Ave","is_instant":true,"status":"pending"}`
		fb := newFakeBackend(http.StatusCreated, booking)
		Reset(fb.Close)
		mux := newMux(fb.srv.URL)

		Convey("When a well-formed booking is posted", func() {
			req := `{"pickup_location":"Kenyatta Ave","patient_name":"J. Doe"}`
			w := do(mux, http.MethodPost, "/api/bookings/instant", req, bearer)

			Convey("Then the proxy returns 201 with the exact booking object", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Body.String(), ShouldEqual, booking)
				So(fb.Last().Path, ShouldEqual, "/bookings/instant/")
				So(string(fb.Last().Body), ShouldEqual, req)
			})
		})
	})
}

func TestScheduledBookings(t *testing.T) {
	Convey("Given a backend booking collection mixing instant and scheduled items", t, func() {
		fb := newFakeBackend(http.StatusOK, `[
			{"id":1,"is_instant":true},
			{"id":2,"is_instant":false,"pickup":"A"},
			{"id":3,"is_instant":true},
			{"id":4,"is_instant":false,"pickup":"B"},
			{"id":5},
			{"id":6,"is_instant":"false"}
		]`)
		Reset(fb.Close)
		mux := newMux(fb.srv.URL)

		Convey("When the scheduled bookings are listed", func() {
			w := do(mux, http.MethodGet, "/api/bookings/scheduled", "", bearer)

			Convey("Then only items with is_instant false remain, in order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(fb.Last().Path, ShouldEqual, "/bookings/")
				var got []map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[0]["id"], ShouldEqual, 2.0)
				So(got[1]["id"], ShouldEqual, 4.0)
				So(got[1]["pickup"], ShouldEqual, "B")
			})
		})

		Convey("When the backend rejects the call", func() {
			fb.Set(http.StatusForbidden, `{"detail":"nope"}`)
			w := do(mux, http.MethodGet, "/api/bookings/scheduled", "", bearer)

			Convey("Then the error body passes through untouched", func() {
				So(w.Code, ShouldEqual, http.StatusForbidden)
				So(w.Body.String(), ShouldEqual, `{"detail":"nope"}`)
			})
		})

		Convey("When the backend returns something that is not a collection", func() {
			fb.Set(http.StatusOK, `"hello"`)
			w := do(mux, http.MethodGet, "/api/bookings/scheduled", "", bearer)

			Convey("Then the booking service message is returned", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(errorBody(w), ShouldEqual, "Booking service unavailable")
			})
		})

		Convey("When a scheduled booking is created", func() {
			fb.Set(http.StatusCreated, `{"id":9,"is_instant":false}`)
			w := do(mux, http.MethodPost, "/api/bookings/scheduled", `{"pickup_time":"2026-10-20T08:00:00Z"}`, bearer)

			Convey("Then it is forwarded to the scheduled endpoint unfiltered", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Body.String(), ShouldEqual, `{"id":9,"is_instant":false}`)
				So(fb.Last().Path, ShouldEqual, "/bookings/scheduled/")
			})
		})
	})
}

func TestAdminLogin(t *testing.T) {
	Convey("Given a backend login endpoint", t, func() {
		fb := newFakeBackend(http.StatusOK, "")
		Reset(fb.Close)
		mux := newMux(fb.srv.URL)

		Convey("When a non-staff user logs in successfully", func() {
			fb.Set(http.StatusOK, `{"access":"a","refresh":"r","user":{"id":3,"is_staff":false,"is_superuser":false}}`)
			w := do(mux, http.MethodPost, "/api/auth/admin-login", `{"email":"u@x.io","password":"p"}`, nil)

			Convey("Then access is denied", func() {
				So(w.Code, ShouldEqual, http.StatusForbidden)
				So(errorBody(w), ShouldEqual, gateway.AdminDeniedMessage)
				So(w.Body.String(), ShouldNotContainSubstring, "access")
				So(fb.Last().Path, ShouldEqual, "/accounts/login/")
			})
		})

		Convey("When a staff user logs in", func() {
			const staff = `{"access":"a","user":{"id":1,"is_staff":true,"is_superuser":false}}`
			fb.Set(http.StatusOK, staff)
			w := do(mux, http.MethodPost, "/api/auth/admin-login", `{}`, nil)

			Convey("Then the backend body is relayed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldEqual, staff)
			})
		})

		Convey("When a superuser logs in", func() {
			fb.Set(http.StatusOK, `{"access":"a","user":{"id":1,"is_staff":false,"is_superuser":true}}`)
			w := do(mux, http.MethodPost, "/api/auth/admin-login", `{}`, nil)

			Convey("Then the backend body is relayed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When the credentials are wrong", func() {
			fb.Set(http.StatusUnauthorized, `{"detail":"Invalid credentials"}`)
			w := do(mux, http.MethodPost, "/api/auth/admin-login", `{}`, nil)

			Convey("Then the backend error passes through", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
				So(w.Body.String(), ShouldEqual, `{"detail":"Invalid credentials"}`)
			})
		})

		Convey("When the regular login is used by a non-staff user", func() {
			const plain = `{"access":"a","user":{"is_staff":false,"is_superuser":false}}`
			fb.Set(http.StatusOK, plain)
			w := do(mux, http.MethodPost, "/api/auth/login", `{}`, nil)

			Convey("Then no privilege check applies", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldEqual, plain)
			})
		})
	})
}

func TestBackendFailures(t *testing.T) {
	Convey("Given a backend that refuses connections", t, func() {
		var logs bytes.Buffer
		So(logger.InitWithWriter(&logs, logger.FormatText), ShouldBeNil)

		dead := httptest.NewServer(http.NotFoundHandler())
		deadURL := dead.URL
		dead.Close()
		mux := newMux(deadURL, gateway.WithLogger(logger.Get()))

		Convey("When every operation is called", func() {
			for _, route := range gateway.DefaultRoutes() {
				for method := range route.Methods {
					body := ""
					if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
						body = `{}`
					}
					var w *httptest.ResponseRecorder
					So(func() { w = do(mux, method, concretePath(route.Pattern), body, bearer) }, ShouldNotPanic)
					So(w.Code, ShouldEqual, http.StatusInternalServerError)
					So(errorBody(w), ShouldEqual, route.Service.UnavailableMessage())
				}
			}

			Convey("Then each failure is logged", func() {
				So(logs.String(), ShouldContainSubstring, "backend request failed")
				So(logs.String(), ShouldContainSubstring, "service=Hospital")
			})
		})
	})

	Convey("Given a backend slower than the configured timeout", t, func() {
		fb := newFakeBackend(http.StatusOK, `{}`)
		fb.SetDelay(2 * time.Second)
		Reset(fb.Close)
		mux := newMuxWithClient(gateway.NewClient(fb.srv.URL, gateway.WithTimeout(50*time.Millisecond)))

		Convey("When a call is proxied", func() {
			start := time.Now()
			w := do(mux, http.MethodGet, "/api/doctors", "", bearer)

			Convey("Then it fails fast with the service message", func() {
				So(time.Since(start), ShouldBeLessThan, time.Second)
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(errorBody(w), ShouldEqual, "Doctor service unavailable")
			})
		})
	})

	Convey("Given a backend that answers with HTML", t, func() {
		fb := newFakeBackend(http.StatusBadGateway, "<html>oops</html>")
		Reset(fb.Close)
		mux := newMux(fb.srv.URL)

		Convey("When a call is proxied", func() {
			w := do(mux, http.MethodGet, "/api/bids", "", bearer)

			Convey("Then the malformed reply is reported as unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(errorBody(w), ShouldEqual, "Bid service unavailable")
			})
		})
	})
}

func TestLocalValidation(t *testing.T) {
	Convey("Given a gateway in front of a backend", t, func() {
		fb := newFakeBackend(http.StatusOK, `{}`)
		Reset(fb.Close)
		mux := newMux(fb.srv.URL, gateway.WithMaxBodyBytes(64))

		Convey("When the identifier is blank", func() {
			w := do(mux, http.MethodPost, "/api/bids/%20/approve", "", bearer)

			Convey("Then 400 is returned before any backend call", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorBody(w), ShouldEqual, "Missing required parameter: id")
				So(fb.calls.Load(), ShouldEqual, int64(0))
			})
		})

		Convey("When the identifier needs escaping", func() {
			w := do(mux, http.MethodGet, "/api/hospitals/st%20mary", "", bearer)

			Convey("Then it is escaped again in the backend path", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(fb.Last().Path, ShouldEqual, "/hospitals/st%20mary/")
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/api/bids", `price=10`, bearer)

			Convey("Then 400 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(fb.calls.Load(), ShouldEqual, int64(0))
			})
		})

		Convey("When the body exceeds the limit", func() {
			w := do(mux, http.MethodPost, "/api/bids", `{"note":"`+strings.Repeat("x", 100)+`"}`, bearer)

			Convey("Then 413 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
				So(fb.calls.Load(), ShouldEqual, int64(0))
			})
		})

		Convey("When an unknown API path is requested", func() {
			w := do(mux, http.MethodGet, "/api/ambulances", "", bearer)

			Convey("Then a JSON 404 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(errorBody(w), ShouldEqual, "Not found")
			})
		})
	})
}

func TestNewGateway(t *testing.T) {
	Convey("Given the gateway constructor", t, func() {
		Convey("When no backend is supplied", func() {
			gw, err := gateway.New(nil)

			Convey("Then construction fails", func() {
				So(gw, ShouldBeNil)
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the route table is invalid", func() {
			gw, err := gateway.New(gateway.NewClient("http://backend"), gateway.WithRoutes([]gateway.Route{{
				Name: "broken", Pattern: "/api/x", Service: gateway.ServiceBid,
			}}))

			Convey("Then construction fails", func() {
				So(gw, ShouldBeNil)
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the default table is used", func() {
			gw, err := gateway.New(gateway.NewClient("http://backend/"))

			Convey("Then every route is exposed as a handler", func() {
				So(err, ShouldBeNil)
				handlers := gw.Handlers()
				So(len(handlers), ShouldEqual, len(gateway.DefaultRoutes()))
				names := make([]string, 0, len(handlers))
				for _, h := range handlers {
					names = append(names, h.Name)
				}
				So(slices.Contains(names, "bookings_scheduled"), ShouldBeTrue)
			})

			Convey("And registering on a nil mux panics", func() {
				So(func() { gw.Register(context.Background(), nil) }, ShouldPanic)
			})
		})
	})
}
