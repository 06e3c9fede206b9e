package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Health status values used in probe responses
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
)

// HealthChecker serves the liveness and readiness endpoints for Kubernetes
// probes.
type HealthChecker struct {
	// ready indicates whether the server is ready to receive traffic
	ready atomic.Bool
	// serverContext provides the dependency state reported by the probes
	serverContext *ServerContext
	// startTime tracks when the server started
	startTime time.Time
}

// NewHealthChecker creates a health checker that reports on sc. The server
// starts out ready.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{
		serverContext: sc,
		startTime:     time.Now(),
	}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// isServerShuttingDown is nil-safe so the checker can run without a context
// in tests.
func (h *HealthChecker) isServerShuttingDown() bool {
	return h.serverContext != nil && h.serverContext.IsShutdown()
}

// HealthResponse is the JSON body of the liveness and readiness endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse adds the pipeline dependency state to the basic
// status. Classifier reports whether classification is available; a server
// can legitimately run without one, so it never fails the probe.
type DetailedHealthResponse struct {
	Status     string `json:"status"`
	Uptime     string `json:"uptime"`
	Classifier string `json:"classifier"`
	Accounts   int    `json:"accounts"`
}

// writeHealthJSON writes a probe response body with the given status code.
func writeHealthJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// readiness evaluates the readiness checks and maps them to an HTTP status.
func (h *HealthChecker) readiness() (HealthResponse, int) {
	response := HealthResponse{
		Status: healthStatusOK,
		Checks: map[string]string{
			"ready":    healthStatusOK,
			"shutdown": healthStatusOK,
		},
	}
	code := http.StatusOK

	if !h.ready.Load() {
		response.Checks["ready"] = healthStatusNotReady
		response.Status = healthStatusNotReady
		code = http.StatusServiceUnavailable
	}
	if h.isServerShuttingDown() {
		response.Checks["shutdown"] = healthStatusShuttingDown
		response.Status = healthStatusNotReady
		code = http.StatusServiceUnavailable
	}
	return response, code
}

// detailed builds the /healthz/detailed snapshot.
func (h *HealthChecker) detailed() (DetailedHealthResponse, int) {
	response := DetailedHealthResponse{
		Status:     healthStatusOK,
		Uptime:     time.Since(h.startTime).Truncate(time.Second).String(),
		Classifier: "not configured",
	}
	if h.serverContext != nil {
		if h.serverContext.Classifier() != nil {
			response.Classifier = "configured"
		}
		response.Accounts = h.serverContext.ActiveAccounts()
	}

	switch {
	case !h.ready.Load():
		response.Status = healthStatusNotReady
		return response, http.StatusServiceUnavailable
	case h.isServerShuttingDown():
		response.Status = healthStatusShuttingDown
		return response, http.StatusServiceUnavailable
	}
	return response, http.StatusOK
}

// LivenessHandler returns the HTTP handler for the /healthz endpoint.
// Liveness probes indicate whether the process should be restarted, so this
// only confirms the process is serving.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealthJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns the HTTP handler for the /readyz endpoint.
// Readiness probes indicate whether the server should receive traffic.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		response, code := h.readiness()
		writeHealthJSON(w, code, response)
	})
}

// DetailedHealthHandler returns the HTTP handler for /healthz/detailed,
// which reports uptime and the state of the classification pipeline.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		response, code := h.detailed()
		writeHealthJSON(w, code, response)
	})
}

// RegisterHealthEndpoints registers the health endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}
