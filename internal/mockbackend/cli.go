package mockbackend

import "os"

// ShowHelp prints usage information for the mock backend binary.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Ambuproxy Mock Backend
======================

An in-memory stand-in for the ambulance-booking backend, used to run the
gateway locally without the real service.

Usage:
  go run ./cmd/mock-backend [options]

Options:
  -addr string
        Listen address (default "127.0.0.1:8000")
  -token string
        Extra bearer token always accepted as the admin user
  -verbose
        Log every request
  -help
        Show this help message

Fixture logins:
  admin / admin123          staff and superuser
  dispatcher / dispatch123  regular user

Examples:
  # Backend on the default port, gateway in front of it
  go run ./cmd/mock-backend &
  AMBUPROXY_BACKEND_URL=http://127.0.0.1:8000 go run ./cmd

  # Fixed token for curl sessions
  go run ./cmd/mock-backend -token dev-token
  curl -H "Authorization: Bearer dev-token" localhost:8080/api/bookings/scheduled
`)
}
