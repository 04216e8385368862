package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthSource reports the outcome of the most recent background poll.
type HealthSource interface {
	LastPoll() (at time.Time, err error)
}

// healthStatus is the /healthz body.
type healthStatus struct {
	Status   string     `json:"status"`
	LastPoll *time.Time `json:"lastPoll,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// NewDebugHandler routes /metrics to the supplied exposition handler and
// /healthz (alias /health) to the health source. A poll that has not run yet
// reports "starting" with 200; a failed poll reports "degraded" with 503.
func NewDebugHandler(metrics http.Handler, health HealthSource) http.Handler {
	mux := http.NewServeMux()
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	healthz := func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{Status: "ok"}
		code := http.StatusOK
		if health == nil {
			writeJSON(w, code, status)
			return
		}
		at, err := health.LastPoll()
		switch {
		case at.IsZero() && err == nil:
			status.Status = "starting"
		case err != nil:
			status.Status = "degraded"
			status.Error = err.Error()
			code = http.StatusServiceUnavailable
		}
		if !at.IsZero() {
			utc := at.UTC()
			status.LastPoll = &utc
		}
		writeJSON(w, code, status)
	}
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("GET /health", healthz)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
