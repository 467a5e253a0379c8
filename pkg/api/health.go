package api

import (
	"net/http"
	"time"
)

// HealthResponse is the liveness check body
type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// healthHandler implements /api/health. It returns 200 while the process is
// serving; component state is reported by /api/ready.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC(),
	})
}
