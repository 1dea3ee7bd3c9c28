package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Filter rewrites a successful backend response before it is relayed.
// Apply receives the backend status and raw JSON body and returns the
// status and body to send. An error is treated as a malformed response.
type Filter struct {
	Name  string
	Apply func(status int, body []byte) (int, []byte, error)
}

// AdminDeniedMessage is returned by AdminOnly when the logged-in user is not staff.
const AdminDeniedMessage = "Access denied. Admin privileges required."

var jsonTrue = []byte("true")
var jsonFalse = []byte("false")

func isSuccess(status int) bool { return status >= 200 && status < 300 }

// ScheduledOnly keeps the items of a booking collection whose is_instant field
// is exactly false, in their original order. It accepts a bare array or a
// paginated object carrying the array under "results".
var ScheduledOnly = &Filter{
	Name: "scheduled_only",
	Apply: func(status int, body []byte) (int, []byte, error) {
		if !isSuccess(status) {
			return status, body, nil
		}
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) == 0 {
			return status, body, fmt.Errorf("%w: empty booking collection", ErrMalformedResponse)
		}

		if trimmed[0] == '[' {
			kept, err := keepScheduled(trimmed)
			if err != nil {
				return status, body, err
			}
			return status, kept, nil
		}

		var page map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return status, body, fmt.Errorf("%w: booking collection: %w", ErrMalformedResponse, err)
		}
		results, ok := page["results"]
		if !ok {
			return status, body, fmt.Errorf("%w: booking collection has no results", ErrMalformedResponse)
		}
		kept, err := keepScheduled(results)
		if err != nil {
			return status, body, err
		}
		page["results"] = kept
		out, err := json.Marshal(page)
		if err != nil {
			return status, body, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		return status, out, nil
	},
}

func keepScheduled(array []byte) ([]byte, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(array, &items); err != nil {
		return nil, fmt.Errorf("%w: booking collection: %w", ErrMalformedResponse, err)
	}
	kept := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			// Non-object entries cannot be scheduled bookings.
			continue
		}
		if bytes.Equal(bytes.TrimSpace(fields["is_instant"]), jsonFalse) {
			kept = append(kept, item)
		}
	}
	out, err := json.Marshal(kept)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return out, nil
}

// AdminOnly downgrades a successful login to 403 unless user.is_staff or
// user.is_superuser is true.
var AdminOnly = &Filter{
	Name: "admin_gate",
	Apply: func(status int, body []byte) (int, []byte, error) {
		if !isSuccess(status) {
			return status, body, nil
		}
		var login struct {
			User map[string]json.RawMessage `json:"user"`
		}
		if err := json.Unmarshal(body, &login); err != nil {
			return status, body, fmt.Errorf("%w: login response: %w", ErrMalformedResponse, err)
		}
		if bytes.Equal(bytes.TrimSpace(login.User["is_staff"]), jsonTrue) ||
			bytes.Equal(bytes.TrimSpace(login.User["is_superuser"]), jsonTrue) {
			return status, body, nil
		}
		denied, err := json.Marshal(errorResponse{Error: AdminDeniedMessage})
		if err != nil {
			return status, body, err
		}
		return http.StatusForbidden, denied, nil
	},
}
