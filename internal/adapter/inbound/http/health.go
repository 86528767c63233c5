package http

import (
	"encoding/json"
	"net/http"
	"time"
)

// healthResponse is the JSON body of GET /health.
type healthResponse struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Version       string `json:"version,omitempty"`
	Environment   string `json:"environment,omitempty"`
}

// healthChecker reports liveness/readiness per §4.5: a constant "healthy"
// status (the process answering the request is, by construction, alive),
// version and environment redacted when the environment is "production".
type healthChecker struct {
	startTime   time.Time
	version     string
	environment string
}

func newHealthChecker(version, environment string) *healthChecker {
	return &healthChecker{startTime: time.Now(), version: version, environment: environment}
}

func (h *healthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:        "healthy",
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		}
		if h.environment != "production" {
			resp.Version = h.version
			resp.Environment = h.environment
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	})
}

func pingHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("pong"))
	})
}

// rootInfoResponse is the JSON body of GET /, a minimal identification
// banner for operators poking the base URL directly.
type rootInfoResponse struct {
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
}

// rootHandler answers GET / with a small identification banner rather than
// a 404; this is the URL an operator or a misconfigured client hits first.
func rootHandler(version, environment string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := rootInfoResponse{Service: "mcpgateway"}
		if environment != "production" {
			resp.Version = version
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	})
}
