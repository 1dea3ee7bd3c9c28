package api

import (
	"net/http"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "ambuproxy"

// HealthHandler handles liveness requests.
type HealthHandler struct{}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// HandleHealth handles GET /healthz. The backend is not probed; a live
// process answers ok.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method " + r.Method + " not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Service: ServiceName})
}
